package icmp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// ErrNotStarted is returned by Ping before Start succeeds
var ErrNotStarted = errors.New("pinger not started")

// Pinger checks whether hosts answer ICMP echo requests. One pair of
// sockets is shared by all concurrent Ping calls.
type Pinger struct {
	config  Config
	id      int
	seqNum  atomic.Uint32
	mu      sync.Mutex
	pending map[replyKey]chan reply
	conn4   *icmp.PacketConn
	conn6   *icmp.PacketConn
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// NewPinger creates a pinger. Zero values in cfg fall back to defaults.
func NewPinger(cfg Config) *Pinger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PayloadSize < 8 {
		cfg.PayloadSize = 56
	}

	return &Pinger{
		config:  cfg,
		id:      int(time.Now().UnixNano() & 0xffff),
		pending: make(map[replyKey]chan reply),
	}
}

// Start opens the ICMP sockets and starts the receive loops
func (p *Pinger) Start() error {
	var err error

	network4, network6 := "ip4:icmp", "ip6:ipv6-icmp"
	if !p.config.Privileged {
		network4, network6 = "udp4", "udp6"
	}

	p.conn4, err = icmp.ListenPacket(network4, "0.0.0.0")
	if err != nil {
		return fmt.Errorf("failed to listen on IPv4: %w", err)
	}

	p.conn6, err = icmp.ListenPacket(network6, "::")
	if err != nil {
		// IPv6 may not be available, continue with IPv4 only
		slog.Debug("ICMPv6 unavailable", "error", err)
		p.conn6 = nil
	}

	p.wg.Go(func() { p.receiveLoop(p.conn4, false) })
	if p.conn6 != nil {
		p.wg.Go(func() { p.receiveLoop(p.conn6, true) })
	}
	return nil
}

// Stop closes the sockets and waits for the receive loops to exit
func (p *Pinger) Stop() {
	if p.closed.Swap(true) {
		return
	}
	if p.conn4 != nil {
		p.conn4.Close()
	}
	if p.conn6 != nil {
		p.conn6.Close()
	}
	p.wg.Wait()
}

// Ping sends one echo request to ip and waits for the reply. An unanswered
// request is not an error: the result is simply not reachable.
func (p *Pinger) Ping(ctx context.Context, ip net.IP) (*Result, error) {
	if ip == nil || ip.IsUnspecified() {
		return nil, fmt.Errorf("invalid IP address: %v", ip)
	}
	if p.conn4 == nil || p.closed.Load() {
		return nil, ErrNotStarted
	}

	isIPv6 := ip.To4() == nil
	result := &Result{IP: ip.String(), IsIPv6: isIPv6}

	rtt, err := p.sendPing(ctx, ip, isIPv6)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Error = err.Error()
		return result, nil
	}

	result.Reachable = true
	result.RTT = rtt
	result.RTTMs = float64(rtt.Microseconds()) / 1000.0
	return result, nil
}

// sendPing sends a single echo request and waits for the matching reply
func (p *Pinger) sendPing(ctx context.Context, ip net.IP, isIPv6 bool) (time.Duration, error) {
	conn := p.conn4
	if isIPv6 {
		if p.conn6 == nil {
			return 0, errors.New("IPv6 not available")
		}
		conn = p.conn6
	}

	seq := int(p.seqNum.Add(1) & 0xffff)
	key := keyFor(ip, seq)
	replies := make(chan reply, 1)

	p.mu.Lock()
	p.pending[key] = replies
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
	}()

	msg, err := echoRequest(p.id, seq, p.config.PayloadSize, isIPv6)
	if err != nil {
		return 0, err
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.config.Privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	sentAt := time.Now()
	if _, err := conn.WriteTo(msg, dst); err != nil {
		return 0, fmt.Errorf("failed to send ICMP: %w", err)
	}

	timer := time.NewTimer(p.config.Timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-replies:
		return r.at.Sub(sentAt), nil
	case <-timer.C:
		return 0, fmt.Errorf("no reply from %s within %s", ip, p.config.Timeout)
	}
}

// receiveLoop delivers echo replies to waiting Ping calls until Stop
func (p *Pinger) receiveLoop(conn *icmp.PacketConn, isIPv6 bool) {
	buf := make([]byte, 1500)

	proto := protocolICMP
	if isIPv6 {
		proto = protocolICMPv6
	}

	for !p.closed.Load() {
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		at := time.Now()

		id, seq, ok := parseEchoReply(proto, buf[:n])
		// Unprivileged sockets have the identifier rewritten by the kernel
		if !ok || (p.config.Privileged && id != p.id) {
			continue
		}

		var peerIP net.IP
		switch addr := peer.(type) {
		case *net.IPAddr:
			peerIP = addr.IP
		case *net.UDPAddr:
			peerIP = addr.IP
		default:
			continue
		}

		p.mu.Lock()
		replies, ok := p.pending[keyFor(peerIP, seq)]
		p.mu.Unlock()

		if ok {
			select {
			case replies <- reply{at: at}:
			default:
			}
		}
	}
}

// echoRequest builds an echo request carrying a send timestamp
func echoRequest(id, seq, payloadSize int, isIPv6 bool) ([]byte, error) {
	var msgType icmp.Type = ipv4.ICMPTypeEcho
	if isIPv6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}

	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(payload, uint64(time.Now().UnixNano()))

	msg := &icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: payload},
	}

	b, err := msg.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}
	return b, nil
}

// parseEchoReply extracts identifier and sequence from an echo reply
func parseEchoReply(proto int, b []byte) (id, seq int, ok bool) {
	msg, err := icmp.ParseMessage(proto, b)
	if err != nil {
		return 0, 0, false
	}
	if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
		return 0, 0, false
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return 0, 0, false
	}
	return echo.ID, echo.Seq, true
}
