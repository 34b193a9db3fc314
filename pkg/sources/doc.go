/*
Package sources collects candidate addresses for GitHub domains.

General fetch (Aggregator.Fetch) walks a ranked list of remote hosts-format
lists and returns the first one with usable entries; lists are never merged.
When every list fails it falls back to the emergency cache, if present and
fresh, and then to a small built-in set. The remediation target is always
excluded from the general set so a broken CDN edge is never installed as
part of a full apply.

Remediation fetch (Aggregator.FetchAll) is the opposite: every remediation
list and every DNS upstream is queried at once and their addresses for one
domain are unioned, to give the watchdog as many candidates as possible.

The emergency cache is a JSON document:

	{
	  "version": "2026.01.15",
	  "last_updated": "2026-01-15T10:04:05+08:00",
	  "ips": {"github.com": ["140.82.112.4"]}
	}

It is considered stale after 30 days, measured from last_updated or, when
that does not parse, from the file's modification time.
*/
package sources
