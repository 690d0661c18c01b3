package scanner

import (
	"net"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
)

// Status is the classified outcome of a single probe
type Status string

const (
	StatusOpen     Status = "open"     // connect succeeded
	StatusClosed   Status = "closed"   // remote actively refused
	StatusFiltered Status = "filtered" // no answer before the timeout
	StatusError    Status = "error"    // any other failure, see Result.Detail
)

// Target is a resolved address plus the ports to probe on it.
// Ports are unique and keep the order they were requested in.
type Target struct {
	IP    net.IP
	Ports []uint16
}

// Result is the outcome of probing one port
type Result struct {
	Port      uint16        `json:"port"`
	Status    Status        `json:"status"`
	Latency   time.Duration `json:"-"`
	LatencyMs float64       `json:"latency_ms"`
	Detail    string        `json:"detail,omitzero"`
}

func newResult(port uint16, status Status, latency time.Duration, detail string) Result {
	return Result{
		Port:      port,
		Status:    status,
		Latency:   latency,
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
		Detail:    detail,
	}
}

// ScanReport maps every requested port of a target to its result
type ScanReport struct {
	ScanID     string    `json:"scan_id"`
	IP         string    `json:"ip"`
	StartedAt  time.Time `json:"started_at"`
	ScanTimeMs int64     `json:"scan_time_ms"`
	Results    []Result  `json:"results"`                 // requested port order
	Unscanned  []uint16  `json:"unscanned_ports,omitzero"` // only set on partial reports
}

// Get returns the result recorded for port
func (r *ScanReport) Get(port uint16) (Result, bool) {
	for _, res := range r.Results {
		if res.Port == port {
			return res, true
		}
	}
	return Result{}, false
}

// Counts tallies results per status
func (r *ScanReport) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Open returns the open ports in requested order
func (r *ScanReport) Open() []uint16 {
	var ports []uint16
	for _, res := range r.Results {
		if res.Status == StatusOpen {
			ports = append(ports, res.Port)
		}
	}
	return ports
}

// Config contains scanner configuration
type Config struct {
	Concurrency int           // Max probes in flight at once, must be positive
	Timeout     time.Duration // Per-probe connect timeout, must be positive
	RateLimit   int           // Max probe dispatches per second (0 or negative = no limit)
	Quiet       bool          // Suppress per-port progress logging
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() Config {
	return Config{
		Concurrency: config.Scanner.DefaultConcurrency,
		Timeout:     config.Scanner.DefaultTimeout,
		RateLimit:   config.Scanner.DefaultRateLimit,
	}
}
