package probe

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

var echoSeq atomic.Uint32

// PingStats summarizes a burst of ICMP echo requests
type PingStats struct {
	Sent     int
	Received int
	RTTs     []time.Duration
}

// Loss returns the fraction of requests without a reply, 1.0 when nothing was sent
func (s PingStats) Loss() float64 {
	if s.Sent == 0 {
		return 1.0
	}
	return 1.0 - float64(s.Received)/float64(s.Sent)
}

// AvgRTT returns the mean round-trip time of the replies received
func (s PingStats) AvgRTT() (time.Duration, bool) {
	if len(s.RTTs) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, rtt := range s.RTTs {
		total += rtt
	}
	return total / time.Duration(len(s.RTTs)), true
}

// Pinger measures ICMP latency and loss to an address
type Pinger interface {
	Ping(ctx context.Context, address string) PingStats
}

// ICMPPinger sends echo requests with golang.org/x/net/icmp. It prefers
// unprivileged datagram sockets and falls back to raw sockets, which need
// root or administrator rights.
type ICMPPinger struct {
	// Count is the number of echo requests (default: 3)
	Count int

	// Timeout is the wait for each reply (default: 2 seconds)
	Timeout time.Duration
}

// NewICMPPinger creates a pinger with the default count and timeout
func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{Count: 3, Timeout: 2 * time.Second}
}

// Ping sends Count echo requests one after another. Every failure counts as
// a lost packet; Ping never returns an error.
func (p *ICMPPinger) Ping(ctx context.Context, address string) PingStats {
	count := p.Count
	if count <= 0 {
		count = 3
	}
	stats := PingStats{Sent: count}

	ip := net.ParseIP(address)
	if ip == nil {
		return stats
	}

	conn, datagram, err := listenICMP(ip.To4() != nil)
	if err != nil {
		return stats
	}
	defer conn.Close()

	id := rand.Intn(1 << 16)
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		seq := int(echoSeq.Add(1) & 0xffff)
		if rtt, err := p.echo(ctx, conn, ip, datagram, id, seq); err == nil {
			stats.Received++
			stats.RTTs = append(stats.RTTs, rtt)
		}
	}

	return stats
}

func (p *ICMPPinger) echo(ctx context.Context, conn *icmp.PacketConn, ip net.IP, datagram bool, id, seq int) (time.Duration, error) {
	v4 := ip.To4() != nil

	var (
		requestType icmp.Type = ipv6.ICMPTypeEchoRequest
		replyType   icmp.Type = ipv6.ICMPTypeEchoReply
		proto                 = protocolIPv6ICMP
	)
	if v4 {
		requestType, replyType, proto = ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply, protocolICMP
	}

	payload, err := (&icmp.Message{
		Type: requestType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("hostsaccel")},
	}).Marshal(nil)
	if err != nil {
		return 0, err
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if datagram {
		dst = &net.UDPAddr{IP: ip}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return 0, err
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, err
		}
		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || msg.Type != replyType {
			continue
		}
		reply, ok := msg.Body.(*icmp.Echo)
		if !ok || reply.Seq != seq {
			continue
		}
		// the kernel rewrites the ID of datagram echo sockets
		if !datagram && reply.ID != id {
			continue
		}
		if !peerIP(peer).Equal(ip) {
			continue
		}
		return time.Since(start), nil
	}
}

func listenICMP(v4 bool) (*icmp.PacketConn, bool, error) {
	networks := []string{"udp6", "ip6:ipv6-icmp"}
	bind := "::"
	if v4 {
		networks = []string{"udp4", "ip4:icmp"}
		bind = "0.0.0.0"
	}

	var lastErr error
	for i, network := range networks {
		conn, err := icmp.ListenPacket(network, bind)
		if err == nil {
			return conn, i == 0, nil
		}
		lastErr = err
	}
	return nil, false, fmt.Errorf("icmp listen: %w", lastErr)
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}
