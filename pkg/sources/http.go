package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/hostsaccel/pkg/types"
)

// maxBodySize caps how much of a remote hosts list is read
const maxBodySize = 4 << 20

// Source yields candidate addresses for every domain it knows about
type Source interface {
	Name() string
	Fetch(ctx context.Context) (types.DomainIPSet, error)
}

// HTTPSource downloads a hosts-format list over HTTP(S)
type HTTPSource struct {
	SourceName string
	URL        string
	Keyword    string
	Timeout    time.Duration
	Client     *http.Client
}

// NewHTTPSource creates a source with a 5 second timeout
func NewHTTPSource(name, url, keyword string) *HTTPSource {
	return &HTTPSource{
		SourceName: name,
		URL:        url,
		Keyword:    keyword,
		Timeout:    5 * time.Second,
	}
}

// Name returns the source name used in logs and metrics
func (s *HTTPSource) Name() string {
	return s.SourceName
}

// Fetch downloads and parses the list. Any failure, including a list
// without matching entries, wraps ErrSourceUnavailable.
func (s *HTTPSource) Fetch(ctx context.Context) (types.DomainIPSet, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: create request: %w", ErrSourceUnavailable, s.SourceName, err)
	}
	req.Header.Set("User-Agent", "hostsaccel")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.SourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status: %s", ErrSourceUnavailable, s.SourceName, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrSourceUnavailable, s.SourceName, err)
	}

	set := ParseHosts(string(body), s.Keyword)
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: %s: no entries matching %q", ErrSourceUnavailable, s.SourceName, s.Keyword)
	}
	return set, nil
}
