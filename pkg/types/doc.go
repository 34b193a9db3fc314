/*
Package types defines the data model shared by every hostsaccel package.

	DomainIPSet   domain -> candidate addresses, in the order sources listed them
	ProbeResult   latency, loss, HTTP latency and composite score for one address
	RankedIPSet   domain -> best addresses (top 3 by ascending score)
	Ranking       full scored lists, persisted after each benchmark
	SessionBackup pre-override hosts content held by a temporary session

# Scoring

	score = 0.5*latency_ms + 500*loss + 0.5*http_latency_ms

Unmeasurable metrics take sentinel values (999 ms, loss 1.0) and measured
latencies are clamped to the same ceiling. With the default weights this
makes any candidate with total packet loss score at least 999.5 while a
candidate with no loss scores at most 999, so a lossless address always
outranks a dead one whatever its latency, and sorting needs no special
cases.
*/
package types
