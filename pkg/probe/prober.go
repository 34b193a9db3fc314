package probe

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/types"
)

// Prober runs the TCP, ICMP and HTTP checks against one candidate address
type Prober struct {
	// Port is the TCP/HTTPS port probed (default: 443)
	Port int

	// Scheme is the scheme of the latency request (default: https)
	Scheme string

	// TCPTimeout bounds the TCP connect (default: 3 seconds)
	TCPTimeout time.Duration

	// HTTPTimeout bounds the latency request (default: 3 seconds)
	HTTPTimeout time.Duration

	// ValidateTimeout bounds the HTTPS validation request (default: 5 seconds)
	ValidateTimeout time.Duration

	// AcceptedStatuses are the statuses that prove an address serves the
	// expected virtual host (default: 200, 403)
	AcceptedStatuses []int

	// Pinger measures ICMP latency; nil disables the ICMP check
	Pinger Pinger

	// Weights are the score coefficients
	Weights types.Weights

	// RootCAs overrides the system certificate roots
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables certificate verification. Never on by default.
	InsecureSkipVerify bool
}

// NewProber creates a prober with default timeouts, weights and an ICMP pinger
func NewProber() *Prober {
	return &Prober{
		Port:             443,
		Scheme:           "https",
		TCPTimeout:       3 * time.Second,
		HTTPTimeout:      3 * time.Second,
		ValidateTimeout:  5 * time.Second,
		AcceptedStatuses: []int{200, 403},
		Pinger:           NewICMPPinger(),
		Weights:          types.DefaultWeights(),
	}
}

// Probe measures address and scores it. Each check that fails contributes
// its sentinel value instead of an error, so one bad candidate never aborts
// a batch.
func (p *Prober) Probe(ctx context.Context, address, expectedHost string) types.ProbeResult {
	timer := metrics.NewTimer()
	logger := log.WithAddress(address)

	pingCh := make(chan PingStats, 1)
	go func() {
		if p.Pinger == nil {
			pingCh <- PingStats{}
			return
		}
		pingCh <- p.Pinger.Ping(ctx, address)
	}()

	latencyMs := types.SentinelLatencyMs
	httpMs := types.SentinelLatencyMs

	tcp := p.tcpChecker(address).Check(ctx)
	if tcp.Healthy {
		// any response counts for latency; validity is judged by Validate
		checker := p.httpChecker(address, expectedHost, p.Scheme, p.HTTPTimeout).WithStatusRange(100, 599)
		if res := checker.Check(ctx); res.StatusCode != 0 {
			httpMs = durationMs(res.Duration)
		} else {
			logger.Debug().Str("reason", res.Message).Msg("http check failed")
		}
	} else {
		logger.Debug().Str("reason", tcp.Message).Msg("tcp check failed")
	}

	stats := <-pingCh
	if rtt, ok := stats.AvgRTT(); ok {
		latencyMs = durationMs(rtt)
	}

	result := types.NewProbeResult(address, latencyMs, stats.Loss(), httpMs, tcp.Healthy, p.weights())

	outcome := "reachable"
	if !tcp.Healthy {
		outcome = "unreachable"
	}
	metrics.ProbesTotal.WithLabelValues(outcome).Inc()
	metrics.CandidateScore.Observe(result.Score)
	timer.ObserveDuration(metrics.ProbeDuration)

	logger.Debug().
		Str("host", expectedHost).
		Float64("latency_ms", result.LatencyMs).
		Float64("loss", result.Loss).
		Float64("http_ms", result.HTTPLatencyMs).
		Float64("score", result.Score).
		Msg("candidate probed")

	return result
}

// Validate reports whether address accepts TCP on the probe port and answers
// an HTTPS request for host, with a certificate valid for host, with one of
// the accepted statuses. The returned error wraps ErrProbeFailure.
func (p *Prober) Validate(ctx context.Context, address, host string) error {
	tcp := p.tcpChecker(address).Check(ctx)
	if !tcp.Healthy {
		return fmt.Errorf("%w: %s: %s", ErrProbeFailure, address, tcp.Message)
	}

	if p.InsecureSkipVerify {
		logger := log.WithComponent("probe")
		logger.Warn().
			Str("address", address).
			Str("host", host).
			Msg("certificate verification is DISABLED for this check")
	}

	statuses := p.AcceptedStatuses
	if len(statuses) == 0 {
		statuses = []int{200, 403}
	}
	checker := p.httpChecker(address, host, "https", p.ValidateTimeout).WithAcceptedStatuses(statuses...)
	res := checker.Check(ctx)
	if !res.Healthy {
		return fmt.Errorf("%w: %s: %s", ErrProbeFailure, address, res.Message)
	}
	return nil
}

// CheckHost reports whether host is reachable through normal resolution:
// TCP on the probe port, then a request answered with a non-5xx status.
func (p *Prober) CheckHost(ctx context.Context, host string) Result {
	tcp := p.tcpChecker(host).Check(ctx)
	if !tcp.Healthy {
		return tcp
	}
	checker := NewHTTPChecker(p.url(host, "https")).
		WithStatusRange(100, 499).
		WithTimeout(p.ValidateTimeout)
	checker.RootCAs = p.RootCAs
	checker.InsecureSkipVerify = p.InsecureSkipVerify
	return checker.Check(ctx)
}

func (p *Prober) tcpChecker(host string) *TCPChecker {
	return NewTCPChecker(net.JoinHostPort(host, strconv.Itoa(p.port()))).WithTimeout(p.TCPTimeout)
}

func (p *Prober) httpChecker(address, host, scheme string, timeout time.Duration) *HTTPChecker {
	checker := NewHTTPChecker(p.url(address, scheme)).WithHost(host).WithTimeout(timeout)
	checker.RootCAs = p.RootCAs
	checker.InsecureSkipVerify = p.InsecureSkipVerify
	return checker
}

func (p *Prober) url(host, scheme string) string {
	if scheme == "" {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(p.port())), Path: "/"}
	return u.String()
}

func (p *Prober) port() int {
	if p.Port <= 0 {
		return 443
	}
	return p.Port
}

func (p *Prober) weights() types.Weights {
	if p.Weights == (types.Weights{}) {
		return types.DefaultWeights()
	}
	return p.Weights
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
