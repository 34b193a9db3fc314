/*
Package watchdog keeps one CDN domain (objects.githubusercontent.com by
default) reachable.

Each pass checks the domain through normal resolution: a TCP connect to
port 443 and an HTTPS request that must not return a 5xx status. When that
fails, every remediation source is queried, each candidate is validated
(TCP 443 plus an HTTPS request with a verified certificate for the domain
answering 200 or 403), and the valid addresses replace that domain's lines
in the managed block. Other managed entries are preserved. When nothing
validates, the hosts file is not touched and the failure is reported; the
next attempt waits for the next interval.

Passes are rate limited to one per Interval (one hour by default). With a
CheckStore the limit is shared by every process using the same state
directory, so a systemd timer running "hostsaccel fix" and a long-running
"hostsaccel watch" do not double up.
*/
package watchdog
