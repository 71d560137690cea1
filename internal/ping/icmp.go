package ping

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const echoData = "glowping"

// ICMPProber sends ICMP echo requests using raw sockets.
type ICMPProber struct {
	id      int
	seq     uint32
	timeout time.Duration
}

// NewICMPProber initializes a prober with a process-scoped identifier.
// timeout bounds the wait for each echo reply.
func NewICMPProber(timeout time.Duration) *ICMPProber {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ICMPProber{id: os.Getpid() & 0xffff, timeout: timeout}
}

// Probe sends count echo requests one after another and counts the replies.
func (p *ICMPProber) Probe(ctx context.Context, addr string, count int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if count <= 0 {
		return Outcome{}, fmt.Errorf("probe count must be positive, got %d", count)
	}

	ip, ipNet, err := resolveIP(addr)
	if err != nil {
		// unknown host is a reachability failure, not a broken prober
		return Outcome{Attempted: count, Diagnostic: err.Error()}, nil
	}

	network, protocol, requestType, replyType := icmpSettings(ipNet)
	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return Outcome{}, &UnavailableError{Method: "icmp", Err: err}
	}
	defer conn.Close()

	outcome := Outcome{Attempted: count}
	var total time.Duration
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		rtt, err := p.echo(ctx, conn, ip, protocol, requestType, replyType)
		if err != nil {
			outcome.Diagnostic = err.Error()
			continue
		}
		outcome.Received++
		total += rtt
	}
	if outcome.Received > 0 {
		outcome.RTT = total / time.Duration(outcome.Received)
	}
	if outcome.Diagnostic == "" {
		outcome.Diagnostic = summary(outcome.Attempted, outcome.Received)
	} else {
		outcome.Diagnostic = summary(outcome.Attempted, outcome.Received) + ": " + outcome.Diagnostic
	}
	return outcome, nil
}

func (p *ICMPProber) echo(ctx context.Context, conn *icmp.PacketConn, ip net.Addr, protocol int, requestType, replyType icmp.Type) (time.Duration, error) {
	seq := int(atomic.AddUint32(&p.seq, 1) & 0xffff)
	msg := icmp.Message{
		Type: requestType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: []byte(echoData),
		},
	}

	payload, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	deadline := effectiveDeadline(ctx, p.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, ip); err != nil {
		return 0, err
	}

	buf := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return 0, fmt.Errorf("echo timeout: %w", err)
			}
			return 0, err
		}
		if peer == nil {
			continue
		}

		reply, err := icmp.ParseMessage(protocol, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type != replyType {
			continue
		}
		body, ok := reply.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if body.ID != p.id || body.Seq != seq {
			continue
		}

		return time.Since(start), nil
	}
}

func resolveIP(addr string) (*net.IPAddr, net.IP, error) {
	ipAddr, err := net.ResolveIPAddr("ip", addr)
	if err != nil {
		return nil, nil, err
	}
	if ipAddr.IP == nil {
		return nil, nil, fmt.Errorf("invalid IP address: %s", addr)
	}
	return ipAddr, ipAddr.IP, nil
}

func icmpSettings(ip net.IP) (network string, protocol int, requestType icmp.Type, replyType icmp.Type) {
	if ip.To4() != nil {
		return "ip4:icmp", ipv4.ICMPTypeEcho.Protocol(), ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	}
	return "ip6:ipv6-icmp", ipv6.ICMPTypeEchoRequest.Protocol(), ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
}

func effectiveDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}
