package benchmark

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/hostsaccel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber scores each address by a fixed latency and tracks how many
// probes run at once
type fakeProber struct {
	latency map[string]float64
	delay   time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
	hosts    sync.Map
}

func (f *fakeProber) Probe(ctx context.Context, address, expectedHost string) types.ProbeResult {
	f.calls.Add(1)
	f.hosts.Store(address, expectedHost)

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.UnreachableResult(address, types.DefaultWeights())
		}
	}

	latency, ok := f.latency[address]
	if !ok {
		return types.UnreachableResult(address, types.DefaultWeights())
	}
	return types.NewProbeResult(address, latency, 0, latency, true, types.DefaultWeights())
}

func TestEngine_RankOrdersByScore(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"1.1.1.1": 10, "2.2.2.2": 50}}

	ranked := NewEngine(prober).Rank(context.Background(), types.DomainIPSet{
		"github.com": {"2.2.2.2", "1.1.1.1"},
	})

	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2"}, ranked["github.com"])
}

func TestEngine_RankTruncatesToTopN(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{
		"1.0.0.1": 40, "1.0.0.2": 10, "1.0.0.3": 30, "1.0.0.4": 20, "1.0.0.5": 50,
	}}

	ranked := NewEngine(prober).Rank(context.Background(), types.DomainIPSet{
		"github.com": {"1.0.0.1", "1.0.0.2", "1.0.0.3", "1.0.0.4", "1.0.0.5"},
	})

	assert.Equal(t, []string{"1.0.0.2", "1.0.0.4", "1.0.0.3"}, ranked["github.com"])
}

func TestEngine_UnreachableRanksLast(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"1.1.1.1": 998}}

	results := NewEngine(prober).Results(context.Background(), types.DomainIPSet{
		"github.com": {"9.9.9.9", "1.1.1.1"},
	})

	require.Len(t, results.Results["github.com"], 2)
	assert.Equal(t, "1.1.1.1", results.Results["github.com"][0].Address)
	assert.Equal(t, types.SentinelLoss, results.Results["github.com"][1].Loss)
}

func TestEngine_TiesKeepInputOrder(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"3.3.3.3": 10, "1.1.1.1": 10, "2.2.2.2": 10}}

	ranked := NewEngine(prober).Rank(context.Background(), types.DomainIPSet{
		"github.com": {"3.3.3.3", "1.1.1.1", "2.2.2.2"},
	})

	assert.Equal(t, []string{"3.3.3.3", "1.1.1.1", "2.2.2.2"}, ranked["github.com"])
}

func TestEngine_EmptyDomainYieldsEmptyList(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"1.1.1.1": 10}}

	ranked := NewEngine(prober).Rank(context.Background(), types.DomainIPSet{
		"github.com":     {"1.1.1.1"},
		"api.github.com": {},
	})

	addrs, ok := ranked["api.github.com"]
	assert.True(t, ok)
	assert.Empty(t, addrs)
	assert.Equal(t, []string{"1.1.1.1"}, ranked["github.com"])
}

func TestEngine_PassesDomainAsExpectedHost(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"1.1.1.1": 10, "2.2.2.2": 10}}

	NewEngine(prober).Rank(context.Background(), types.DomainIPSet{
		"github.com":            {"1.1.1.1"},
		"assets-cdn.github.com": {"2.2.2.2"},
	})

	host, _ := prober.hosts.Load("1.1.1.1")
	assert.Equal(t, "github.com", host)
	host, _ = prober.hosts.Load("2.2.2.2")
	assert.Equal(t, "assets-cdn.github.com", host)
}

func TestEngine_GlobalConcurrencyLimit(t *testing.T) {
	set := types.DomainIPSet{}
	latency := map[string]float64{}
	for _, domain := range []string{"a.github.com", "b.github.com", "c.github.com"} {
		for i := 0; i < 6; i++ {
			addr := domain + "-" + string(rune('0'+i))
			set[domain] = append(set[domain], addr)
			latency[addr] = float64(i)
		}
	}
	prober := &fakeProber{latency: latency, delay: 20 * time.Millisecond}

	engine := NewEngine(prober)
	engine.Concurrency = 4
	results := engine.Results(context.Background(), set)

	assert.Equal(t, int32(18), prober.calls.Load())
	assert.LessOrEqual(t, prober.peak, 4)
	for domain := range set {
		assert.Len(t, results.Results[domain], 6)
	}
}

func TestEngine_CancelledContextUsesSentinels(t *testing.T) {
	prober := &fakeProber{latency: map[string]float64{"1.1.1.1": 10}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewEngine(prober).Results(ctx, types.DomainIPSet{"github.com": {"1.1.1.1", "2.2.2.2"}})

	assert.Equal(t, int32(0), prober.calls.Load())
	require.Len(t, results.Results["github.com"], 2)
	for _, r := range results.Results["github.com"] {
		assert.Equal(t, types.SentinelLatencyMs, r.LatencyMs)
		assert.Equal(t, types.SentinelLoss, r.Loss)
		assert.False(t, r.TCPReachable)
	}
}

func TestEngine_CancelMidBatchReturnsPromptly(t *testing.T) {
	set := types.DomainIPSet{}
	for i := 0; i < 20; i++ {
		set.Add("github.com", "10.0.0."+string(rune('a'+i)))
	}
	prober := &fakeProber{latency: map[string]float64{}, delay: 5 * time.Second}

	engine := NewEngine(prober)
	engine.Concurrency = 2

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := engine.Results(ctx, set)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, results.Results["github.com"], 20)
	assert.Less(t, int(prober.calls.Load()), 20)
}
