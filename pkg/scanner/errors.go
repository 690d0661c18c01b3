package scanner

import (
	"errors"
	"fmt"
)

// Configuration errors, returned before any probe is dispatched
var (
	ErrInvalidConcurrency = errors.New("concurrency limit must be positive")
	ErrInvalidTimeout     = errors.New("probe timeout must be positive")
	ErrInvalidAddress     = errors.New("target address must be a resolved IP")
	ErrNoPorts            = errors.New("no ports to scan")
	ErrInvalidPort        = errors.New("port out of range 1-65535")
)

// Aggregation faults. These indicate a scheduler bug, not a network condition.
var (
	ErrDuplicateResult = errors.New("duplicate result for port")
	ErrUnexpectedPort  = errors.New("result for port that was not requested")
	ErrIncomplete      = errors.New("report is incomplete")
)

// FatalError aborts a scan. It is distinct from a per-port StatusError result:
// the remaining ports are not probed.
type FatalError struct {
	Port uint16
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error probing port %d: %v", e.Port, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
