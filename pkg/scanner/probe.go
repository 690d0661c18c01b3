package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Prober attempts a single connection to one port and classifies the outcome.
//
// Per-port failures (refused, timed out, unreachable) are encoded in the
// returned Result and never returned as an error. A non-nil error means the
// probe could not be carried out at all for a reason that will affect every
// other port as well, such as running out of file descriptors; the scanner
// treats it as fatal and stops dispatching.
type Prober interface {
	Probe(ctx context.Context, ip net.IP, port uint16, timeout time.Duration) (Result, error)
}

// ProberFunc is a function adapter for the Prober interface
type ProberFunc func(ctx context.Context, ip net.IP, port uint16, timeout time.Duration) (Result, error)

func (f ProberFunc) Probe(ctx context.Context, ip net.IP, port uint16, timeout time.Duration) (Result, error) {
	return f(ctx, ip, port, timeout)
}

// ContextDialer is satisfied by *net.Dialer
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPProber performs full TCP connect probes
type TCPProber struct {
	dialer ContextDialer
}

// NewTCPProber creates a connect prober. A nil dialer uses a zero net.Dialer.
func NewTCPProber(dialer ContextDialer) *TCPProber {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &TCPProber{dialer: dialer}
}

// Probe dials ip:port once, bounded by timeout. The connection is closed
// before returning whatever the outcome.
func (p *TCPProber) Probe(ctx context.Context, ip net.IP, port uint16, timeout time.Duration) (Result, error) {
	if port == 0 {
		return newResult(port, StatusError, 0, ErrInvalidPort.Error()), nil
	}
	if ip == nil || ip.IsUnspecified() {
		return newResult(port, StatusError, 0, ErrInvalidAddress.Error()), nil
	}

	address := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	latency := time.Since(start)

	if err == nil {
		conn.Close()
		return newResult(port, StatusOpen, latency, ""), nil
	}

	status, fatal := Classify(err)
	result := newResult(port, status, latency, err.Error())
	if fatal {
		return result, err
	}
	return result, nil
}

// Classify maps a dial error onto a Status. The second return value reports
// whether the error is fatal to the whole scan.
//
// Mapping:
//
//	nil                                       -> open
//	ECONNREFUSED (RST received)               -> closed
//	context.DeadlineExceeded, ETIMEDOUT,
//	net.Error with Timeout() == true          -> filtered
//	EMFILE, ENFILE, ENOBUFS, ENOMEM           -> error, fatal
//	anything else (EHOSTUNREACH, ENETUNREACH) -> error
//
// Platforms whose refusal does not unwrap to syscall.ECONNREFUSED are caught
// by the "connection refused" text the net package reports for them.
func Classify(err error) (Status, bool) {
	if err == nil {
		return StatusOpen, false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return StatusClosed, false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return StatusFiltered, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusFiltered, false
	}

	if isResourceExhausted(err) {
		return StatusError, true
	}

	if strings.Contains(err.Error(), "connection refused") {
		return StatusClosed, false
	}

	return StatusError, false
}

func isResourceExhausted(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM)
}
