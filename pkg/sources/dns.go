package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/miekg/dns"
)

// Resolver yields candidate addresses for a single domain
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, domain string) ([]string, error)
}

// DNSSource asks public resolvers for A records. Different upstreams often
// see different CDN edges, which widens the candidate pool for remediation.
type DNSSource struct {
	Upstreams []string
	Timeout   time.Duration
	Net       string // "udp" (default) or "tcp"
}

// NewDNSSource creates a source querying upstreams over UDP
func NewDNSSource(upstreams []string) *DNSSource {
	return &DNSSource{
		Upstreams: upstreams,
		Timeout:   3 * time.Second,
		Net:       "udp",
	}
}

// Name returns the source name used in logs and metrics
func (d *DNSSource) Name() string {
	return "dns"
}

// Resolve queries every upstream and unions the answers in upstream order.
// It fails only when no upstream answered.
func (d *DNSSource) Resolve(ctx context.Context, domain string) ([]string, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	network := d.Net
	if network == "" {
		network = "udp"
	}
	client := &dns.Client{Net: network, Timeout: timeout}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	query.RecursionDesired = true

	var (
		addrs    []string
		seen     = make(map[string]bool)
		answered bool
		lastErr  error
	)

	for _, upstream := range d.Upstreams {
		resp, _, err := client.ExchangeContext(ctx, query, upstream)
		if err != nil {
			lastErr = err
			log.Logger.Debug().
				Err(err).
				Str("component", "sources").
				Str("upstream", upstream).
				Str("domain", domain).
				Msg("dns query failed")
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s answered %s", upstream, dns.RcodeToString[resp.Rcode])
			continue
		}
		answered = true

		for _, rr := range resp.Answer {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}
			ip := a.A.String()
			if !seen[ip] {
				seen[ip] = true
				addrs = append(addrs, ip)
			}
		}
	}

	if !answered {
		return nil, fmt.Errorf("%w: dns %s: %v", ErrSourceUnavailable, domain, lastErr)
	}
	return addrs, nil
}
