package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// MarkdownWriter collects reports and renders them as one document at Close
type MarkdownWriter struct {
	filename  string
	openOnly  bool
	startTime time.Time
	reports   []*scanner.ScanReport
}

// NewMarkdownWriter creates a markdown writer. The file is written
// atomically on Close; "-" prints to stdout.
func NewMarkdownWriter(filename string, opts Options) *MarkdownWriter {
	return &MarkdownWriter{
		filename:  filename,
		openOnly:  opts.OpenOnly,
		startTime: time.Now(),
	}
}

// Write queues a report for the document
func (w *MarkdownWriter) Write(report *scanner.ScanReport) error {
	w.reports = append(w.reports, report)
	return nil
}

// Close renders the document and writes it out
func (w *MarkdownWriter) Close() error {
	doc := w.Render()
	if isStdout(w.filename) {
		_, err := os.Stdout.WriteString(doc)
		return err
	}
	return WriteAtomic(w.filename, []byte(doc))
}

// Render builds the markdown document for the queued reports
func (w *MarkdownWriter) Render() string {
	var md strings.Builder

	md.WriteString("# Port Scan Report\n\n")
	fmt.Fprintf(&md, "**Scan Date:** %s\n\n", w.startTime.Format(time.RFC3339))
	fmt.Fprintf(&md, "**Hosts Scanned:** %d\n\n", len(w.reports))

	// Summary
	total := make(map[scanner.Status]int)
	for _, r := range w.reports {
		for status, n := range r.Counts() {
			total[status] += n
		}
	}
	md.WriteString("## Summary\n\n")
	fmt.Fprintf(&md, "- **Open:** %d\n", total[scanner.StatusOpen])
	fmt.Fprintf(&md, "- **Closed:** %d\n", total[scanner.StatusClosed])
	fmt.Fprintf(&md, "- **Filtered:** %d\n", total[scanner.StatusFiltered])
	fmt.Fprintf(&md, "- **Error:** %d\n\n", total[scanner.StatusError])

	for _, r := range w.reports {
		fmt.Fprintf(&md, "## %s\n\n", r.IP)
		fmt.Fprintf(&md, "Scan `%s`, %d ms", r.ScanID, r.ScanTimeMs)
		if len(r.Unscanned) > 0 {
			fmt.Fprintf(&md, ", interrupted with %d ports not scanned", len(r.Unscanned))
		}
		md.WriteString("\n\n")

		rows := visible(r, w.openOnly)
		if len(rows) == 0 {
			md.WriteString("_No open ports._\n\n")
			continue
		}

		md.WriteString("| Port | State | Service | Latency | Detail |\n")
		md.WriteString("|------|-------|---------|---------|--------|\n")
		for _, res := range rows {
			fmt.Fprintf(&md, "| %d/tcp | %s | %s | %s | %s |\n",
				res.Port, res.Status, orDash(scanner.ServiceName(res.Port)),
				formatLatency(res), orDash(escapeCell(res.Detail)))
		}
		md.WriteString("\n")
	}

	return md.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
