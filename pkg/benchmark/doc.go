// Package benchmark ranks candidate addresses per domain.
//
// Every probe of every domain runs in one errgroup capped at Concurrency,
// so total network fan-out is bounded no matter how many domains a source
// returns. Results for a domain are produced only after all of its probes
// finished; there is no partial ranking.
package benchmark
