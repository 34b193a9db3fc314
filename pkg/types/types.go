package types

import (
	"sort"
	"time"
)

const (
	// SentinelLatencyMs is recorded for any latency that could not be measured.
	// Measured latencies are clamped to it so a failed check is never cheaper
	// than a slow one.
	SentinelLatencyMs = 999.0

	// SentinelLoss is recorded when no echo reply came back at all.
	SentinelLoss = 1.0

	// DefaultTopN is the number of addresses kept per domain after ranking.
	DefaultTopN = 3
)

// DomainIPSet maps a domain to candidate addresses in source-fetch order
type DomainIPSet map[string][]string

// Domains returns the keys in lexical order
func (s DomainIPSet) Domains() []string {
	domains := make([]string, 0, len(s))
	for d := range s {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Add appends addr to domain unless it is already present
func (s DomainIPSet) Add(domain, addr string) {
	for _, existing := range s[domain] {
		if existing == addr {
			return
		}
	}
	s[domain] = append(s[domain], addr)
}

// Len returns the total number of (domain, address) pairs
func (s DomainIPSet) Len() int {
	n := 0
	for _, addrs := range s {
		n += len(addrs)
	}
	return n
}

// Clone returns a deep copy
func (s DomainIPSet) Clone() DomainIPSet {
	out := make(DomainIPSet, len(s))
	for d, addrs := range s {
		out[d] = append([]string(nil), addrs...)
	}
	return out
}

// RankedIPSet maps a domain to its best addresses, best first
type RankedIPSet map[string][]string

// Domains returns the keys in lexical order
func (r RankedIPSet) Domains() []string {
	return DomainIPSet(r).Domains()
}

// Empty reports whether no domain has any address to write
func (r RankedIPSet) Empty() bool {
	for _, addrs := range r {
		if len(addrs) > 0 {
			return false
		}
	}
	return true
}

// Weights are the coefficients of the composite score
type Weights struct {
	Latency float64 `yaml:"latency" json:"latency"`
	Loss    float64 `yaml:"loss" json:"loss"`
	HTTP    float64 `yaml:"http" json:"http"`
}

// DefaultWeights returns 0.5*latency + 500*loss + 0.5*http
func DefaultWeights() Weights {
	return Weights{Latency: 0.5, Loss: 500, HTTP: 0.5}
}

// Score computes the composite score; lower is better
func (w Weights) Score(latencyMs, loss, httpMs float64) float64 {
	return w.Latency*latencyMs + w.Loss*loss + w.HTTP*httpMs
}

// ProbeResult is the outcome of probing a single candidate address
type ProbeResult struct {
	Address       string  `json:"address"`
	LatencyMs     float64 `json:"latency_ms"`
	Loss          float64 `json:"loss"`
	HTTPLatencyMs float64 `json:"http_latency_ms"`
	Score         float64 `json:"score"`
	TCPReachable  bool    `json:"tcp_reachable"`
}

// NewProbeResult clamps the measurements into their valid ranges and scores them
func NewProbeResult(addr string, latencyMs, loss, httpMs float64, tcpOK bool, w Weights) ProbeResult {
	latencyMs = clamp(latencyMs, 0, SentinelLatencyMs)
	httpMs = clamp(httpMs, 0, SentinelLatencyMs)
	loss = clamp(loss, 0, SentinelLoss)
	if loss >= SentinelLoss {
		latencyMs = SentinelLatencyMs
	}

	return ProbeResult{
		Address:       addr,
		LatencyMs:     latencyMs,
		Loss:          loss,
		HTTPLatencyMs: httpMs,
		Score:         w.Score(latencyMs, loss, httpMs),
		TCPReachable:  tcpOK,
	}
}

// UnreachableResult is the all-sentinel result used when a probe is abandoned
func UnreachableResult(addr string, w Weights) ProbeResult {
	return NewProbeResult(addr, SentinelLatencyMs, SentinelLoss, SentinelLatencyMs, false, w)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SortByScore sorts results ascending by score, keeping input order on ties
func SortByScore(results []ProbeResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
}

// TopAddresses returns the addresses of the first n results
func TopAddresses(results []ProbeResult, n int) []string {
	if n > len(results) {
		n = len(results)
	}
	addrs := make([]string, 0, n)
	for _, r := range results[:n] {
		addrs = append(addrs, r.Address)
	}
	return addrs
}

// Ranking is the full scored list for every benchmarked domain
type Ranking struct {
	Results    map[string][]ProbeResult `json:"results"`
	MeasuredAt time.Time                `json:"measured_at"`
}

// Top truncates each domain's scored list to its best n addresses
func (r Ranking) Top(n int) RankedIPSet {
	out := make(RankedIPSet, len(r.Results))
	for domain, results := range r.Results {
		out[domain] = TopAddresses(results, n)
	}
	return out
}

// EmergencySnapshot is the on-disk emergency cache document
type EmergencySnapshot struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"last_updated"`
	IPs         DomainIPSet `json:"ips"`
}

// SessionBackup is the pre-override hosts content captured by a temporary session
type SessionBackup struct {
	SessionID  string    `json:"session_id"`
	HostsPath  string    `json:"hosts_path"`
	Content    []byte    `json:"content"`
	CapturedAt time.Time `json:"captured_at"`
}
