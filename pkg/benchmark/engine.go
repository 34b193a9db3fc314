package benchmark

import (
	"context"
	"time"

	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of probes in flight across all domains
const DefaultConcurrency = 15

// Prober measures one candidate address for a domain
type Prober interface {
	Probe(ctx context.Context, address, expectedHost string) types.ProbeResult
}

// Engine ranks candidates with a single bounded pool shared by all domains
type Engine struct {
	Prober      Prober
	Concurrency int
	TopN        int
	Weights     types.Weights
}

// NewEngine creates an engine with the default pool size and top-N
func NewEngine(prober Prober) *Engine {
	return &Engine{
		Prober:      prober,
		Concurrency: DefaultConcurrency,
		TopN:        types.DefaultTopN,
		Weights:     types.DefaultWeights(),
	}
}

// Rank returns each domain's best TopN addresses, best first. A domain
// without candidates maps to an empty list.
func (e *Engine) Rank(ctx context.Context, set types.DomainIPSet) types.RankedIPSet {
	return e.Results(ctx, set).Top(e.topN())
}

// Results probes every candidate and returns the full scored list per
// domain, sorted by score with ties kept in input order. It returns only
// once every probe has finished. After ctx is cancelled, probes that have
// not started yet are recorded with sentinel values instead of running.
func (e *Engine) Results(ctx context.Context, set types.DomainIPSet) types.Ranking {
	timer := metrics.NewTimer()
	logger := log.WithComponent("benchmark")

	results := make(map[string][]types.ProbeResult, len(set))
	for domain, addrs := range set {
		results[domain] = make([]types.ProbeResult, len(addrs))
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency())

	for _, domain := range set.Domains() {
		for i, addr := range set[domain] {
			slot := &results[domain][i]

			if ctx.Err() != nil {
				*slot = types.UnreachableResult(addr, e.weights())
				continue
			}

			g.Go(func() error {
				if ctx.Err() != nil {
					*slot = types.UnreachableResult(addr, e.weights())
					return nil
				}
				*slot = e.Prober.Probe(ctx, addr, domain)
				return nil
			})
		}
	}
	_ = g.Wait() // probes never return errors

	for domain := range results {
		types.SortByScore(results[domain])
	}

	timer.ObserveDuration(metrics.BenchmarkDuration)
	logger.Info().
		Int("domains", len(set)).
		Int("candidates", set.Len()).
		Dur("elapsed", timer.Duration()).
		Bool("cancelled", ctx.Err() != nil).
		Msg("benchmark complete")

	return types.Ranking{Results: results, MeasuredAt: time.Now()}
}

func (e *Engine) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

func (e *Engine) topN() int {
	if e.TopN <= 0 {
		return types.DefaultTopN
	}
	return e.TopN
}

func (e *Engine) weights() types.Weights {
	if e.Weights == (types.Weights{}) {
		return types.DefaultWeights()
	}
	return e.Weights
}
