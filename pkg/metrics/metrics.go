package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Probe metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostsaccel_probes_total",
			Help: "Total number of candidate probes by outcome",
		},
		[]string{"outcome"},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostsaccel_probe_duration_seconds",
			Help:    "Wall-clock time of a full candidate probe in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidateScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostsaccel_candidate_score",
			Help:    "Composite score of probed candidates (lower is better)",
			Buckets: []float64{25, 50, 100, 200, 400, 600, 800, 1000, 1500, 2000},
		},
	)

	// Benchmark metrics
	BenchmarkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostsaccel_benchmark_duration_seconds",
			Help:    "Time taken to rank all domains in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	// Source metrics
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostsaccel_source_fetches_total",
			Help: "Total number of remote source fetches by source and result",
		},
		[]string{"source", "result"},
	)

	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostsaccel_source_fetch_duration_seconds",
			Help:    "Time taken to fetch candidates from one source in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostsaccel_fallbacks_total",
			Help: "Total number of times every remote source failed, by fallback used",
		},
		[]string{"fallback"},
	)

	// Hosts file metrics
	HostsWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostsaccel_hosts_writes_total",
			Help: "Total number of hosts file replacements by kind and result",
		},
		[]string{"kind", "result"},
	)

	CacheFlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostsaccel_cache_flush_failures_total",
			Help: "Total number of failed resolver cache flushes",
		},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hostsaccel_session_state",
			Help: "Current override session state (1 for the active state)",
		},
		[]string{"state"},
	)

	// Watchdog metrics
	WatchdogRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostsaccel_watchdog_runs_total",
			Help: "Total number of remediation checks by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(CandidateScore)
	prometheus.MustRegister(BenchmarkDuration)
	prometheus.MustRegister(SourceFetchesTotal)
	prometheus.MustRegister(SourceFetchDuration)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(HostsWritesTotal)
	prometheus.MustRegister(CacheFlushFailures)
	prometheus.MustRegister(SessionState)
	prometheus.MustRegister(WatchdogRunsTotal)
}

// SetSessionState marks state as the single active session state
func SetSessionState(state string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1
		}
		SessionState.WithLabelValues(s).Set(value)
	}
}

// WriteTextfile dumps every registered metric in the text exposition format
// to path, for the node_exporter textfile collector. hostsaccel never listens
// on a port. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
