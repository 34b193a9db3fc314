package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker sends a single request and judges the response status
type HTTPChecker struct {
	// URL is the full URL to request (e.g., "https://140.82.112.4:443/")
	URL string

	// Method is the HTTP method to use (default: HEAD)
	Method string

	// Host overrides the Host header and, for https, the TLS server name.
	// This is how an address is asked to serve a specific virtual host.
	Host string

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	// AcceptedStatuses, when set, is the exact set of healthy status codes
	// and takes precedence over the range below
	AcceptedStatuses []int

	// ExpectedStatusMin is the minimum acceptable status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable status code (default: 399)
	ExpectedStatusMax int

	// Timeout bounds the whole request (default: 5 seconds)
	Timeout time.Duration

	// RootCAs overrides the system roots used to verify the certificate
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables certificate verification
	InsecureSkipVerify bool
}

// NewHTTPChecker creates a new HTTP checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		Method:            http.MethodHead,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Timeout:           5 * time.Second,
	}
}

// Check performs the request
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}
	if h.Host != "" {
		req.Host = h.Host
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := h.accepts(resp.StatusCode)

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		if len(h.AcceptedStatuses) > 0 {
			message = fmt.Sprintf("%s (expected one of %v)", message, h.AcceptedStatuses)
		} else {
			message = fmt.Sprintf("%s (expected %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
		}
	}

	return Result{
		Healthy:    healthy,
		Message:    message,
		StatusCode: resp.StatusCode,
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

func (h *HTTPChecker) accepts(code int) bool {
	if len(h.AcceptedStatuses) > 0 {
		for _, accepted := range h.AcceptedStatuses {
			if code == accepted {
				return true
			}
		}
		return false
	}
	return code >= h.ExpectedStatusMin && code <= h.ExpectedStatusMax
}

// client builds a one-shot client: no proxy, no keep-alive, no redirects,
// so the measurement reflects this address alone
func (h *HTTPChecker) client() *http.Client {
	transport := &http.Transport{
		Proxy:             nil,
		DisableKeepAlives: true,
		TLSClientConfig: &tls.Config{
			ServerName:         h.Host,
			RootCAs:            h.RootCAs,
			InsecureSkipVerify: h.InsecureSkipVerify, //nolint:gosec // opt-in via config, warned by the caller
		},
		TLSHandshakeTimeout: h.Timeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   h.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Type returns the check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithMethod sets the HTTP method
func (h *HTTPChecker) WithMethod(method string) *HTTPChecker {
	h.Method = method
	return h
}

// WithHeader adds a custom HTTP header
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithHost sets the virtual host the address is expected to serve
func (h *HTTPChecker) WithHost(host string) *HTTPChecker {
	h.Host = host
	return h
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithAcceptedStatuses restricts healthy responses to exactly these codes
func (h *HTTPChecker) WithAcceptedStatuses(codes ...int) *HTTPChecker {
	h.AcceptedStatuses = codes
	return h
}

// WithTimeout sets the request timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Timeout = timeout
	return h
}
