package sources

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Aggregator decides which candidate addresses to benchmark
type Aggregator struct {
	// Sources are tried in order by Fetch
	Sources []Source

	// Remediation sources and Resolvers are all queried by FetchAll
	Remediation []Source
	Resolvers   []Resolver

	// Cache is the emergency snapshot; nil disables it
	Cache *EmergencyCache

	// Exclude lists domains never returned by Fetch
	Exclude []string

	// Events receives source.fallback; may be nil
	Events *events.Broker

	now         func() time.Time
	refreshOnce sync.Once
}

// NewAggregator creates an aggregator that keeps the remediation target out
// of the general set
func NewAggregator(general []Source, cache *EmergencyCache) *Aggregator {
	return &Aggregator{
		Sources: general,
		Cache:   cache,
		Exclude: []string{RemediationTarget},
	}
}

// Fetch returns the first source that yields at least one entry after
// exclusion. Sources are never merged. When all fail it returns the
// emergency cache if present and fresh, otherwise the built-in set. The
// result is never empty.
func (a *Aggregator) Fetch(ctx context.Context) types.DomainIPSet {
	logger := log.WithComponent("sources")

	if set := firstUsable(ctx, a.Sources, a.Exclude); set != nil {
		a.refreshCache(set)
		return set
	}

	if a.Cache != nil {
		snap, err := a.Cache.Load()
		switch {
		case err != nil:
			if !isMissing(err) {
				logger.Warn().Err(err).Msg("emergency cache unreadable")
			}
		case a.Cache.Stale(a.clock()):
			logger.Warn().Str("version", snap.Version).Msg("emergency cache is stale")
		default:
			if set := exclude(snap.IPs, a.Exclude); set.Len() > 0 {
				a.fallback("emergency_cache", snap.Version)
				return set
			}
		}
	}

	set := exclude(Builtin(), a.Exclude)
	a.fallback("builtin", "")
	a.refreshCache(set)
	return set
}

// FetchAll queries every remediation source and resolver concurrently and
// unions their addresses for domain, first-seen order, source order. An
// empty union returns the built-in addresses for domain.
func (a *Aggregator) FetchAll(ctx context.Context, domain string) []string {
	domain = strings.ToLower(domain)
	logger := log.WithDomain(domain)

	results := make([][]string, len(a.Remediation)+len(a.Resolvers))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.Remediation {
		g.Go(func() error {
			timer := metrics.NewTimer()
			set, err := src.Fetch(gctx)
			if err != nil {
				recordFetch(src.Name(), "error", timer)
				logger.Debug().Err(err).Str("source", src.Name()).Msg("remediation source failed")
				return nil
			}
			recordFetch(src.Name(), "ok", timer)
			results[i] = set[domain]
			return nil
		})
	}
	for j, res := range a.Resolvers {
		g.Go(func() error {
			timer := metrics.NewTimer()
			addrs, err := res.Resolve(gctx, domain)
			if err != nil {
				recordFetch(res.Name(), "error", timer)
				logger.Debug().Err(err).Str("source", res.Name()).Msg("resolver failed")
				return nil
			}
			recordFetch(res.Name(), "ok", timer)
			results[len(a.Remediation)+j] = addrs
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	union := make(types.DomainIPSet)
	for _, addrs := range results {
		for _, addr := range addrs {
			union.Add(domain, addr)
		}
	}

	if len(union[domain]) == 0 {
		logger.Warn().Msg("no remediation source yielded candidates, using built-in addresses")
		a.fallback("builtin", "")
		return BuiltinAddresses(domain)
	}

	logger.Info().Int("candidates", len(union[domain])).Msg("remediation candidates collected")
	return union[domain]
}

// RefreshCache forces an emergency cache refresh from the general sources
func (a *Aggregator) RefreshCache(ctx context.Context) (types.DomainIPSet, error) {
	if a.Cache == nil {
		return exclude(Builtin(), a.Exclude), nil
	}
	return a.Cache.Refresh(ctx, a.Sources, a.Exclude)
}

// refreshCache saves set as the emergency snapshot once per aggregator
// when the snapshot is missing or stale
func (a *Aggregator) refreshCache(set types.DomainIPSet) {
	if a.Cache == nil {
		return
	}
	a.refreshOnce.Do(func() {
		if !a.Cache.Stale(a.clock()) {
			return
		}
		if err := a.Cache.Save(set); err != nil {
			logger := log.WithComponent("sources")
			logger.Warn().Err(err).Msg("failed to refresh emergency cache")
			return
		}
		logger := log.WithComponent("sources")
		logger.Info().Str("path", a.Cache.Path).Msg("emergency cache refreshed")
	})
}

func (a *Aggregator) fallback(kind, version string) {
	metrics.FallbacksTotal.WithLabelValues(kind).Inc()
	logger := log.WithComponent("sources")
	logger.Warn().Str("fallback", kind).Msg("all remote sources failed")

	metadata := map[string]string{"fallback": kind}
	if version != "" {
		metadata["version"] = version
	}
	a.Events.Publish(events.NewEvent(events.EventSourceFallback, "using "+kind+" addresses", metadata))
}

func (a *Aggregator) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// firstUsable returns the first source's set that is non-empty after
// exclusion, or nil
func firstUsable(ctx context.Context, sources []Source, excludeDomains []string) types.DomainIPSet {
	logger := log.WithComponent("sources")

	for _, src := range sources {
		if ctx.Err() != nil {
			return nil
		}

		timer := metrics.NewTimer()
		set, err := src.Fetch(ctx)
		if err != nil {
			recordFetch(src.Name(), "error", timer)
			logger.Warn().Err(err).Str("source", src.Name()).Msg("source failed")
			continue
		}

		set = exclude(set, excludeDomains)
		if set.Len() == 0 {
			recordFetch(src.Name(), "empty", timer)
			logger.Warn().Str("source", src.Name()).Msg("source had no usable entries")
			continue
		}

		recordFetch(src.Name(), "ok", timer)
		logger.Info().
			Str("source", src.Name()).
			Int("domains", len(set)).
			Int("addresses", set.Len()).
			Msg("candidates fetched")
		return set
	}
	return nil
}

func recordFetch(source, result string, timer *metrics.Timer) {
	metrics.SourceFetchesTotal.WithLabelValues(source, result).Inc()
	timer.ObserveDurationVec(metrics.SourceFetchDuration, source)
}
