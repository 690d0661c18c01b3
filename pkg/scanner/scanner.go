package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/velemoonkon/portsweep/pkg/config"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Scanner probes the ports of a target with bounded concurrency
type Scanner struct {
	config  Config
	limiter *rate.Limiter
	prober  Prober
}

// Option customizes a Scanner
type Option func(*Scanner)

// WithProber replaces the default TCP connect prober
func WithProber(p Prober) Option {
	return func(s *Scanner) {
		s.prober = p
	}
}

// NewScanner creates a scanner. Invalid limits are rejected here, before
// any probe can be dispatched.
func NewScanner(cfg Config, opts ...Option) (*Scanner, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidTimeout, cfg.Timeout)
	}

	// Treat RateLimit <= 0 as no limit
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	s := &Scanner{
		config:  cfg,
		limiter: limiter,
		prober:  NewTCPProber(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan probes every port of target and returns the complete report.
// See ScanStream for cancellation and error semantics.
func (s *Scanner) Scan(ctx context.Context, target Target) (*ScanReport, error) {
	return s.ScanStream(ctx, target, nil)
}

// ScanStream probes every port of target and calls handler with each result
// as it completes. Handler calls are serialized and arrive in completion
// order; the returned report is in requested port order.
//
// At most Config.Concurrency probes are in flight at any time. Each port is
// dispatched once, in the order given.
//
// Cancelling ctx stops dispatching immediately. Probes already in flight are
// left to finish on their own timeout and their results are kept. The
// returned report is then partial (ScanReport.Unscanned lists the ports that
// were never probed) and the error wraps ctx.Err().
//
// A fatal prober error stops dispatching the same way and is returned as a
// *FatalError together with the partial report.
//
// Handler errors do not interrupt the scan; the first one is returned.
func (s *Scanner) ScanStream(ctx context.Context, target Target, handler func(Result) error) (*ScanReport, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	report := NewReport(target)
	ip := target.IP.String()
	resultChan := make(chan Result, config.Scanner.ResultChannelBuffer)

	var collectorWg sync.WaitGroup
	var handlerErr, recordErr error
	collectorWg.Go(func() {
		for result := range resultChan {
			if err := report.Record(result); err != nil {
				slog.Error("inconsistent probe result", "ip", ip, "port", result.Port, "error", err)
				if recordErr == nil {
					recordErr = err
				}
				continue
			}
			s.logProgress(ip, result)

			if handler != nil {
				if err := handler(result); err != nil && handlerErr == nil {
					handlerErr = err
				}
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	// In-flight probes drain on their own timeout rather than the caller's context
	probeCtx := context.WithoutCancel(ctx)

	for _, port := range target.Ports {
		if gctx.Err() != nil {
			break
		}
		if err := s.limiter.Wait(gctx); err != nil {
			break
		}

		// Blocks while Concurrency probes are in flight
		g.Go(func() error {
			// The slot may have been granted after cancellation
			if gctx.Err() != nil {
				return nil
			}
			result, err := s.probe(probeCtx, target.IP, port)
			resultChan <- result
			if err != nil {
				return &FatalError{Port: port, Err: err}
			}
			return nil
		})
	}

	fatalErr := g.Wait()
	close(resultChan)
	collectorWg.Wait()

	report.finish(uuid.NewString())

	if fatalErr != nil {
		slog.Error("scan aborted", "ip", ip, "error", fatalErr, "pending", len(report.Pending()))
		return report.Snapshot(), fatalErr
	}
	if recordErr != nil {
		return report.Snapshot(), fmt.Errorf("internal consistency fault: %w", recordErr)
	}
	if !report.IsComplete() {
		if err := ctx.Err(); err != nil {
			return report.Snapshot(), fmt.Errorf("scan interrupted: %w", err)
		}
		return report.Snapshot(), errors.New("scan ended with ports pending")
	}

	final, err := report.Finalize()
	if err != nil {
		return report.Snapshot(), err
	}
	return final, handlerErr
}

// probe runs the prober, turning a panic into an error result for that port
func (s *Scanner) probe(ctx context.Context, ip net.IP, port uint16) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = newResult(port, StatusError, 0, fmt.Sprintf("probe panic: %v", r))
			err = nil
		}
	}()
	return s.prober.Probe(ctx, ip, port, s.config.Timeout)
}

// logProgress logs each result at debug level and open ports at info level
func (s *Scanner) logProgress(ip string, result Result) {
	slog.Debug("probe result",
		slog.String("ip", ip),
		slog.Group("probe",
			slog.Int("port", int(result.Port)),
			slog.String("status", string(result.Status)),
			slog.Float64("latency_ms", result.LatencyMs),
			slog.String("detail", result.Detail),
		),
	)

	if result.Status == StatusOpen && !s.config.Quiet {
		slog.Info("open port", "ip", ip, "port", result.Port, "latency_ms", result.LatencyMs)
	}
}
