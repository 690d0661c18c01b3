package scanner

import (
	"fmt"
	"sync"
	"time"
)

// Report collects results for one target as probes complete.
// It is safe for concurrent use.
type Report struct {
	mu        sync.Mutex
	scanID    string
	ip        string
	ports     []uint16
	requested map[uint16]struct{}
	results   map[uint16]Result
	startedAt time.Time
	elapsed   time.Duration
}

// NewReport creates an empty report expecting one result per target port
func NewReport(target Target) *Report {
	requested := make(map[uint16]struct{}, len(target.Ports))
	for _, p := range target.Ports {
		requested[p] = struct{}{}
	}
	return &Report{
		ip:        target.IP.String(),
		ports:     target.Ports,
		requested: requested,
		results:   make(map[uint16]Result, len(target.Ports)),
		startedAt: time.Now(),
	}
}

// Record stores the result for its port. A port outside the requested set
// or a second result for the same port is rejected; the stored result is
// never overwritten.
func (r *Report) Record(result Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.results[result.Port]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateResult, result.Port)
	}
	if _, ok := r.requested[result.Port]; !ok {
		return fmt.Errorf("%w: %d", ErrUnexpectedPort, result.Port)
	}
	r.results[result.Port] = result
	return nil
}

// IsComplete reports whether every requested port has a result
func (r *Report) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) == len(r.requested)
}

// Len returns the number of recorded results
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// Pending returns requested ports without a result, in requested order
func (r *Report) Pending() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending()
}

func (r *Report) pending() []uint16 {
	var missing []uint16
	for _, p := range r.ports {
		if _, ok := r.results[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// finish stamps the scan id and duration
func (r *Report) finish(scanID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanID = scanID
	r.elapsed = time.Since(r.startedAt)
}

// Finalize returns the complete report ordered by requested port order.
// It fails with ErrIncomplete while any port is still pending.
func (r *Report) Finalize() (*ScanReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if missing := r.pending(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %d of %d ports pending", ErrIncomplete, len(missing), len(r.ports))
	}
	return r.build(), nil
}

// Snapshot returns whatever has been recorded so far. Ports without a
// result are listed in ScanReport.Unscanned.
func (r *Report) Snapshot() *ScanReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := r.build()
	report.Unscanned = r.pending()
	return report
}

func (r *Report) build() *ScanReport {
	results := make([]Result, 0, len(r.results))
	for _, p := range r.ports {
		if res, ok := r.results[p]; ok {
			results = append(results, res)
		}
	}
	return &ScanReport{
		ScanID:     r.scanID,
		IP:         r.ip,
		StartedAt:  r.startedAt,
		ScanTimeMs: r.elapsed.Milliseconds(),
		Results:    results,
	}
}
