/*
Package probe measures candidate addresses for a domain.

A Prober combines three checks against one address:

  - ICMP echo (Pinger), giving average round-trip time and packet loss
  - TCP connect to the probe port (TCPChecker)
  - an HTTP(S) request to the address with the expected Host header and TLS
    server name (HTTPChecker)

Probe never returns an error. A failed check contributes its sentinel value
(999 ms, loss 1.0) and the composite score is computed by types.Weights.
The HTTP request only runs once the TCP connect succeeded.

Validate is the stricter check used before an address is written to the
hosts file: the certificate must be valid for the expected host and the
response status must be one of AcceptedStatuses (200 and 403 by default).
Certificate verification is always on unless InsecureSkipVerify is set,
and every insecure check logs a warning.

ICMP uses unprivileged datagram sockets where the kernel allows them
(net.ipv4.ping_group_range on Linux, always on macOS) and raw sockets
otherwise. Without either, every ping counts as lost and the score
degrades rather than failing.
*/
package probe
