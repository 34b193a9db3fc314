/*
Package metrics defines the Prometheus collectors for hostsaccel.

All collectors are package-level variables registered with the default
registry in init(). hostsaccel is a short-lived command, so it never serves
/metrics; instead WriteTextfile dumps the registry to a file that the
node_exporter textfile collector can pick up.

# Metrics Catalog

Probe metrics:

	hostsaccel_probes_total{outcome}          counter    reachable/unreachable
	hostsaccel_probe_duration_seconds         histogram  one full candidate probe
	hostsaccel_candidate_score                histogram  composite score, lower is better
	hostsaccel_benchmark_duration_seconds     histogram  ranking of all domains

Source metrics:

	hostsaccel_source_fetches_total{source,result}     counter
	hostsaccel_source_fetch_duration_seconds{source}   histogram
	hostsaccel_fallbacks_total{fallback}               counter  emergency_cache/builtin

Hosts file and session metrics:

	hostsaccel_hosts_writes_total{kind,result}  counter  apply/restore/remove/replace
	hostsaccel_cache_flush_failures_total       counter
	hostsaccel_session_state{state}             gauge    1 for the current state

Watchdog metrics:

	hostsaccel_watchdog_runs_total{outcome}  counter  skipped/healthy/fixed/failed

# Usage

	timer := metrics.NewTimer()
	result := prober.Probe(ctx, address, host)
	timer.ObserveDuration(metrics.ProbeDuration)

	metrics.SourceFetchesTotal.WithLabelValues(source.Name(), "ok").Inc()

	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		log.Warn("failed to write metrics textfile")
	}

Label values are always drawn from small fixed sets; addresses and domains
go to the logs, never to labels.
*/
package metrics
