package icmp

import (
	"net"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
)

// Result is the outcome of a liveness check for a single host
type Result struct {
	IP        string        `json:"ip"`
	Reachable bool          `json:"reachable"`
	RTT       time.Duration `json:"-"`
	RTTMs     float64       `json:"rtt_ms,omitzero"`
	IsIPv6    bool          `json:"is_ipv6"`
	Error     string        `json:"error,omitzero"`
}

// Config contains pinger configuration
type Config struct {
	Timeout     time.Duration // How long to wait for an echo reply
	PayloadSize int           // ICMP payload size in bytes
	Privileged  bool          // Raw sockets (root) instead of unprivileged UDP ICMP
}

// DefaultConfig returns pinger configuration from the environment
func DefaultConfig() Config {
	return Config{
		Timeout:     config.Ping.Timeout,
		PayloadSize: config.Ping.PayloadSize,
		Privileged:  config.Ping.Privileged,
	}
}

// replyKey identifies an outstanding echo request
type replyKey struct {
	ip  string
	seq int
}

// reply is delivered by the receive loop to the waiting Ping call
type reply struct {
	at time.Time
}

func keyFor(ip net.IP, seq int) replyKey {
	return replyKey{ip: ip.String(), seq: seq}
}
