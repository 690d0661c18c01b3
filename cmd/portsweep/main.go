package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/history"
	"github.com/velemoonkon/portsweep/pkg/icmp"
	"github.com/velemoonkon/portsweep/pkg/output"
	"github.com/velemoonkon/portsweep/pkg/resolve"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	flags       Flags
	profilePath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "portsweep [flags] <host>...",
	Short: "Concurrent TCP port scanner",
	Long: `portsweep - concurrent TCP connect scanner

Probes each port of each host with a full TCP connect and reports it as:
  • open      connection accepted
  • closed    connection refused
  • filtered  no answer before the timeout
  • error     any other failure (unreachable network, ...)

Output formats:
  • text (default) - table per host
  • jsonl - one line per port, pipe to jq
  • markdown - report document
  • parquet - columnar, query with DuckDB`,

	Example: `  # Scan the default port list
  portsweep scanme.example.org

  # Ports and ranges
  portsweep 10.0.0.5 -p 22,80,8000-8100

  # Small subnet, open ports only, JSONL to a file
  portsweep 192.168.1.0/28 --open-only --format jsonl -o scan.jsonl

  # Ping first and skip hosts that do not answer
  portsweep -f hosts.txt --ping --skip-down

  # Track changes between runs
  portsweep db.internal -p 1-1024 --history ~/.portsweep.db

  # Saved scan definition
  portsweep --profile nightly.yaml`,

	RunE:          runScan,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("portsweep %s (commit: %s, built: %s)\n", version, commit, date))

	f := rootCmd.Flags()

	// Input
	f.StringVarP(&flags.File, "file", "f", "", "Read targets from file (one per line)")
	f.StringVarP(&flags.Ports, "ports", "p", config.Scanner.DefaultPorts, "Ports to scan, e.g. 22,80,8000-8100")
	f.StringVar(&profilePath, "profile", "", "YAML scan profile")

	// Liveness
	f.BoolVar(&flags.Ping, "ping", false, "ICMP ping each host before scanning")
	f.BoolVar(&flags.PingPrivileged, "ping-privileged", config.Ping.Privileged, "Use raw ICMP sockets (requires root)")
	f.BoolVar(&flags.SkipDown, "skip-down", false, "Skip hosts that do not answer the ping")

	// Resolution
	f.StringSliceVar(&flags.DNSServers, "dns-server", nil, "DNS server for hostnames (repeatable, default from resolv.conf)")

	// Output
	f.StringVarP(&flags.Output, "output", "o", "-", "Output file (- for stdout)")
	f.StringVar(&flags.Format, "format", config.Scanner.DefaultFormat, "Output format: text, jsonl, markdown, parquet")
	f.BoolVar(&flags.OpenOnly, "open-only", false, "Only list open ports (text, markdown)")
	f.StringVar(&flags.History, "history", "", "Scan history database; reports changes since the last scan")

	// Performance
	f.IntVarP(&flags.Concurrency, "concurrency", "c", config.Scanner.DefaultConcurrency, "Max probes in flight")
	f.DurationVarP(&flags.Timeout, "timeout", "t", config.Scanner.DefaultTimeout, "Connect timeout per port")
	f.IntVarP(&flags.Rate, "rate", "r", config.Scanner.DefaultRateLimit, "Max probes/second (0 = unlimited)")

	// Logging
	f.BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress progress output")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.SetUsageTemplate(usageTemplate)
}

func runScan(cmd *cobra.Command, args []string) error {
	initLogger()

	var profile *config.Profile
	if profilePath != "" {
		p, err := config.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		profile = p
	}

	settings, err := ResolveSettings(args, flags, profile, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("stopping scan, waiting for in-flight probes...")
		cancel()
	}()

	s, err := scanner.NewScanner(settings.Scanner)
	if err != nil {
		return err
	}

	writer, err := output.New(settings.Format, settings.Output, output.Options{OpenOnly: settings.OpenOnly})
	if err != nil {
		return err
	}

	r := &run{settings: settings, scanner: s, writer: writer}
	defer r.close()

	if settings.Ping {
		r.pinger = icmp.NewPinger(icmp.Config{
			Timeout:     config.Ping.Timeout,
			PayloadSize: config.Ping.PayloadSize,
			Privileged:  settings.PingPrivileged,
		})
		if err := r.pinger.Start(); err != nil {
			return fmt.Errorf("failed to start pinger (try --ping-privileged as root): %w", err)
		}
	}

	if settings.History != "" {
		store, err := history.Open(settings.History)
		if err != nil {
			return err
		}
		r.store = store
	}

	slog.Info("starting scan", "hosts", len(settings.Targets), "ports", len(settings.Ports),
		"concurrency", settings.Scanner.Concurrency, "timeout", settings.Scanner.Timeout)
	startTime := time.Now()

	scanErr := r.scanAll(ctx)

	if closeErr := r.close(); closeErr != nil && scanErr == nil {
		scanErr = closeErr
	}
	if scanErr != nil {
		return scanErr
	}

	if ctx.Err() != nil {
		slog.Warn("scan interrupted", "hosts_done", r.done, "duration", time.Since(startTime).Round(time.Millisecond))
		return nil
	}
	slog.Info("scan completed", "hosts", r.done, "skipped", r.skipped, "duration", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// run carries the collaborators of one invocation
type run struct {
	settings Settings
	scanner  *scanner.Scanner
	writer   output.Writer
	resolver *resolve.Resolver
	pinger   *icmp.Pinger
	store    *history.Store

	done, skipped int
	closed        bool
}

// scanAll scans hosts one after another. Per-host resolution and ping
// failures are logged and skipped; a fatal scan error aborts the run.
func (r *run) scanAll(ctx context.Context) error {
	for _, host := range r.settings.Targets {
		if ctx.Err() != nil {
			return nil
		}

		ip, err := r.resolve(ctx, host)
		if err != nil {
			slog.Warn("skipping host", "host", host, "error", err)
			r.skipped++
			continue
		}

		if r.pinger != nil {
			res, err := r.pinger.Ping(ctx, ip)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if !res.Reachable {
				slog.Info("host not answering ping", "host", host, "ip", res.IP)
				if r.settings.SkipDown {
					r.skipped++
					continue
				}
			} else {
				slog.Debug("host up", "host", host, "ip", res.IP, "rtt_ms", res.RTTMs)
			}
		}

		if err := r.scanHost(ctx, host, ip); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) scanHost(ctx context.Context, host string, ip net.IP) error {
	target, err := scanner.NewTarget(ip, r.settings.Ports)
	if err != nil {
		return err
	}

	slog.Info("scanning", "host", host, "ip", ip.String(), "ports", len(target.Ports))
	report, scanErr := r.scanner.Scan(ctx, target)

	if report != nil {
		if err := r.writer.Write(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	var fatal *scanner.FatalError
	switch {
	case errors.As(scanErr, &fatal):
		return fmt.Errorf("scan of %s aborted: %w", host, scanErr)
	case ctx.Err() != nil:
		return nil
	case scanErr != nil:
		slog.Error("scan failed", "host", host, "error", scanErr)
		return nil
	}

	r.done++
	r.recordHistory(report)
	return nil
}

func (r *run) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if r.resolver == nil {
		opts := resolve.DefaultOptions()
		if len(r.settings.DNSServers) > 0 {
			opts.Servers = r.settings.DNSServers
		}
		resolver, err := resolve.New(opts)
		if err != nil {
			return nil, err
		}
		r.resolver = resolver
	}
	return r.resolver.Resolve(ctx, host)
}

// recordHistory logs port changes since the previous scan and stores the report
func (r *run) recordHistory(report *scanner.ScanReport) {
	if r.store == nil {
		return
	}

	prev, ok, err := r.store.Latest(report.IP)
	if err != nil {
		slog.Error("failed to read history", "ip", report.IP, "error", err)
	} else if ok {
		changes := history.Diff(prev, report)
		for _, c := range changes {
			slog.Info("port changed", "ip", report.IP, "port", c.Port, "from", c.From, "to", c.To, "since", prev.StartedAt.Format(time.RFC3339))
		}
		if len(changes) == 0 {
			slog.Info("no changes since last scan", "ip", report.IP, "previous", prev.ScanID)
		}
	}

	if err := r.store.Save(report); err != nil {
		slog.Error("failed to save history", "ip", report.IP, "error", err)
	}
}

func (r *run) close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.pinger != nil {
		r.pinger.Stop()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			slog.Error("failed to close history", "error", err)
		}
	}
	return r.writer.Close()
}

func initLogger() {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case flags.Quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usageTemplate = `Usage:
  {{.UseLine}}

Examples:
{{.Example}}

Input:
  -f, --file string          Read targets from file
  -p, --ports string         Ports to scan, e.g. 22,80,8000-8100
      --profile string       YAML scan profile

Liveness:
      --ping                 ICMP ping each host before scanning
      --ping-privileged      Use raw ICMP sockets, requires root
      --skip-down            Skip hosts that do not answer the ping

Resolution:
      --dns-server strings   DNS server for hostnames (default from resolv.conf)

Output:
  -o, --output string        Output file, - for stdout (default "-")
      --format string        Format: text, jsonl, markdown, parquet (default "text")
      --open-only            Only list open ports
      --history string       Scan history database

Performance:
  -c, --concurrency int      Max probes in flight (default 100)
  -t, --timeout duration     Connect timeout per port (default 1s)
  -r, --rate int             Max probes/second, 0=unlimited (default 0)

Logging:
  -q, --quiet                Suppress progress output
  -v, --verbose              Verbose logging

Other:
  -h, --help                 Show help
      --version              Show version
`
