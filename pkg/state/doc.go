/*
Package state persists hostsaccel state across runs in a BoltDB file
(<state-dir>/hostsaccel.db).

Buckets:

	session   hosts file path -> JSON SessionBackup (pending restore journal)
	rankings  "last"          -> JSON Ranking of the latest benchmark
	watchdog  target domain   -> RFC 3339 time of the last remediation check

The session journal exists for the one exit path no in-process handler can
cover: the process being killed while a temporary override is active. A
later run finds the entry and writes the backup back (session.RecoverPending).

Only one process may hold the database; NewBoltStore fails after one second
if another hostsaccel is running.
*/
package state
