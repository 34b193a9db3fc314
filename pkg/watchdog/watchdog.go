package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/hostsaccel/pkg/events"
	"github.com/cuemby/hostsaccel/pkg/log"
	"github.com/cuemby/hostsaccel/pkg/metrics"
	"github.com/cuemby/hostsaccel/pkg/probe"
	"golang.org/x/sync/errgroup"
)

// ErrNoCandidates is returned when no candidate address passed validation
var ErrNoCandidates = errors.New("no valid candidate addresses")

const (
	// DefaultInterval is both the loop period and the rate limit
	DefaultInterval = time.Hour

	// graceDivisor sets the rate limit slack to 1/60 of the interval, so a
	// loop tick one interval after the previous check is never skipped
	graceDivisor = 60
)

// Outcome is the result of one CheckAndFix pass
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeHealthy Outcome = "healthy"
	OutcomeFixed   Outcome = "fixed"
	OutcomeFailed  Outcome = "failed"
)

// Prober checks the target directly and validates candidate addresses
type Prober interface {
	CheckHost(ctx context.Context, host string) probe.Result
	Validate(ctx context.Context, address, host string) error
}

// CandidateSource returns every known candidate address for one domain
type CandidateSource interface {
	FetchAll(ctx context.Context, domain string) []string
}

// Installer writes a domain's addresses into the managed block
type Installer interface {
	ReplaceDomain(ctx context.Context, domain string, addrs []string) error
}

// CheckStore persists when each target was last checked
type CheckStore interface {
	LastCheck(target string) (time.Time, error)
	SetLastCheck(target string, at time.Time) error
}

// Watchdog keeps a single domain reachable by overriding its addresses
// when it stops answering
type Watchdog struct {
	Target    string
	Interval  time.Duration
	Sources   CandidateSource
	Prober    Prober
	Installer Installer

	// Store shares the rate limit across processes; nil keeps it in memory
	Store CheckStore

	// Events receives remediation.* events; may be nil
	Events *events.Broker

	// Concurrency bounds parallel candidate validation (default: 8)
	Concurrency int

	now func() time.Time

	mu        sync.Mutex
	lastCheck time.Time
	status    *Status
}

// New creates a watchdog for target with the default interval
func New(target string, sources CandidateSource, prober Prober, installer Installer) *Watchdog {
	return &Watchdog{
		Target:      target,
		Interval:    DefaultInterval,
		Sources:     sources,
		Prober:      prober,
		Installer:   installer,
		Concurrency: 8,
		status:      NewStatus(),
	}
}

// CheckAndFix checks the target unless it was checked less than Interval
// ago. When the target is unhealthy it collects candidates from every
// source, validates them concurrently and installs the valid ones for the
// target only. When none validate the hosts file is left untouched and the
// error wraps ErrNoCandidates.
func (w *Watchdog) CheckAndFix(ctx context.Context) (Outcome, error) {
	return w.run(ctx, false)
}

// CheckAndFixNow is CheckAndFix without the rate limit
func (w *Watchdog) CheckAndFixNow(ctx context.Context) (Outcome, error) {
	return w.run(ctx, true)
}

// Status returns a copy of the check history
func (w *Watchdog) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.getStatus()
}

// Run checks every Interval until ctx is done, starting immediately
func (w *Watchdog) Run(ctx context.Context) error {
	logger := log.WithComponent("watchdog")
	logger.Info().
		Str("target", w.Target).
		Dur("interval", w.interval()).
		Msg("watchdog started")

	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	// Run initial check immediately
	w.runLogged(ctx)

	for {
		select {
		case <-ticker.C:
			w.runLogged(ctx)
		case <-ctx.Done():
			logger.Info().Msg("watchdog stopped")
			return ctx.Err()
		}
	}
}

func (w *Watchdog) runLogged(ctx context.Context) {
	outcome, err := w.CheckAndFix(ctx)
	if err != nil && ctx.Err() == nil {
		logger := log.WithComponent("watchdog")
		logger.Error().
			Err(err).
			Str("outcome", string(outcome)).
			Msg("remediation failed")
	}
}

func (w *Watchdog) run(ctx context.Context, force bool) (Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := log.WithDomain(w.Target)
	start := w.clock()

	if !force && w.rateLimited(start) {
		logger.Debug().Msg("checked recently, skipping")
		metrics.WatchdogRunsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, nil
	}
	w.recordCheck(start)

	outcome, err := w.checkAndFix(ctx)

	w.getStatus().Update(outcome, err, start)
	metrics.WatchdogRunsTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (w *Watchdog) checkAndFix(ctx context.Context) (Outcome, error) {
	logger := log.WithDomain(w.Target)

	result := w.Prober.CheckHost(ctx, w.Target)
	if result.Healthy {
		logger.Debug().Str("result", result.Message).Msg("target reachable")
		return OutcomeHealthy, nil
	}
	logger.Warn().Str("result", result.Message).Msg("target unreachable, attempting remediation")

	candidates := w.Sources.FetchAll(ctx, w.Target)
	valid := w.validate(ctx, candidates)

	if len(valid) == 0 {
		err := fmt.Errorf("%w: %s: %d candidates checked", ErrNoCandidates, w.Target, len(candidates))
		w.publish(events.EventRemediationFailed, err.Error(), nil)
		return OutcomeFailed, err
	}

	if err := w.Installer.ReplaceDomain(ctx, w.Target, valid); err != nil {
		w.publish(events.EventRemediationFailed, "failed to install addresses", map[string]string{"error": err.Error()})
		return OutcomeFailed, fmt.Errorf("failed to install addresses for %s: %w", w.Target, err)
	}

	logger.Info().
		Strs("addresses", valid).
		Int("candidates", len(candidates)).
		Msg("remediation installed")
	w.publish(events.EventRemediationFixed, "remediation installed", map[string]string{"addresses": fmt.Sprint(valid)})
	return OutcomeFixed, nil
}

// validate returns the candidates that pass validation, in candidate order
func (w *Watchdog) validate(ctx context.Context, candidates []string) []string {
	ok := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(w.concurrency())
	for i, addr := range candidates {
		g.Go(func() error {
			if err := w.Prober.Validate(ctx, addr, w.Target); err != nil {
				logger := log.WithAddress(addr)
				logger.Debug().Err(err).Msg("candidate rejected")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait() // validation never returns errors

	var valid []string
	for i, addr := range candidates {
		if ok[i] {
			valid = append(valid, addr)
		}
	}
	return valid
}

func (w *Watchdog) rateLimited(now time.Time) bool {
	last := w.lastCheck
	if w.Store != nil {
		stored, err := w.Store.LastCheck(w.Target)
		if err != nil {
			logger := log.WithComponent("watchdog")
			logger.Warn().Err(err).Msg("failed to read last check time")
		} else if stored.After(last) {
			last = stored
		}
	}
	if last.IsZero() {
		return false
	}
	interval := w.interval()
	return now.Sub(last) < interval-interval/graceDivisor
}

func (w *Watchdog) recordCheck(at time.Time) {
	w.lastCheck = at
	if w.Store == nil {
		return
	}
	if err := w.Store.SetLastCheck(w.Target, at); err != nil {
		logger := log.WithComponent("watchdog")
		logger.Warn().Err(err).Msg("failed to persist last check time")
	}
}

func (w *Watchdog) publish(eventType events.EventType, message string, metadata map[string]string) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["target"] = w.Target
	w.Events.Publish(events.NewEvent(eventType, message, metadata))
}

func (w *Watchdog) getStatus() *Status {
	if w.status == nil {
		w.status = NewStatus()
	}
	return w.status
}

func (w *Watchdog) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultInterval
	}
	return w.Interval
}

func (w *Watchdog) concurrency() int {
	if w.Concurrency <= 0 {
		return 8
	}
	return w.Concurrency
}

func (w *Watchdog) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
