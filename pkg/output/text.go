package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// TextWriter prints a human-readable table per host
type TextWriter struct {
	file     *os.File
	writer   *bufio.Writer
	openOnly bool
}

// NewTextWriter creates a text writer to filename ("-" for stdout)
func NewTextWriter(filename string, opts Options) (*TextWriter, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}
	return &TextWriter{
		file:     file,
		writer:   bufio.NewWriter(file),
		openOnly: opts.OpenOnly,
	}, nil
}

// NewTextWriterFromWriter creates a text writer on an existing io.Writer
func NewTextWriterFromWriter(w io.Writer, opts Options) *TextWriter {
	return &TextWriter{writer: bufio.NewWriter(w), openOnly: opts.OpenOnly}
}

// Write prints the report table followed by a status summary
func (w *TextWriter) Write(report *scanner.ScanReport) error {
	fmt.Fprintf(w.writer, "\nScan report for %s\n", report.IP)

	rows := visible(report, w.openOnly)
	if len(rows) > 0 {
		tw := tabwriter.NewWriter(w.writer, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tSTATE\tSERVICE\tLATENCY")
		for _, res := range rows {
			service := scanner.ServiceName(res.Port)
			if service == "" {
				service = "-"
			}
			fmt.Fprintf(tw, "%d/tcp\t%s\t%s\t%s\n", res.Port, res.Status, service, formatLatency(res))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	} else if w.openOnly {
		fmt.Fprintln(w.writer, "No open ports")
	}

	counts := report.Counts()
	fmt.Fprintf(w.writer, "%d open, %d closed, %d filtered, %d error in %s\n",
		counts[scanner.StatusOpen], counts[scanner.StatusClosed],
		counts[scanner.StatusFiltered], counts[scanner.StatusError],
		(time.Duration(report.ScanTimeMs) * time.Millisecond).String())
	if len(report.Unscanned) > 0 {
		fmt.Fprintf(w.writer, "%d ports not scanned (scan interrupted)\n", len(report.Unscanned))
	}

	return w.writer.Flush()
}

// Close flushes and closes the output
func (w *TextWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return closeOutput(w.file)
}

func formatLatency(res scanner.Result) string {
	if res.Status != scanner.StatusOpen && res.Status != scanner.StatusClosed {
		return "-"
	}
	return fmt.Sprintf("%.1fms", res.LatencyMs)
}
