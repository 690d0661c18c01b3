package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// PortRecord is one JSONL line: a single port result with its host context
type PortRecord struct {
	ScanID    string  `json:"scan_id"`
	IP        string  `json:"ip"`
	Port      uint16  `json:"port"`
	Status    string  `json:"status"`
	Service   string  `json:"service,omitzero"`
	LatencyMs float64 `json:"latency_ms"`
	Detail    string  `json:"detail,omitzero"`
}

// JSONLWriter writes one JSON object per port (JSON Lines). Suited for
// piping to jq and for large scans.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// NewJSONLWriter creates a JSONL writer to filename ("-" for stdout)
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}
	return &JSONLWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// NewJSONLWriterFromWriter creates a JSONL writer on an existing io.Writer
func NewJSONLWriterFromWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{writer: bufio.NewWriterSize(w, 64*1024)}
}

// Write emits a line for every port in the report
func (w *JSONLWriter) Write(report *scanner.ScanReport) error {
	for _, res := range report.Results {
		data, err := json.Marshal(PortRecord{
			ScanID:    report.ScanID,
			IP:        report.IP,
			Port:      res.Port,
			Status:    string(res.Status),
			Service:   scanner.ServiceName(res.Port),
			LatencyMs: res.LatencyMs,
			Detail:    res.Detail,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		if _, err := w.writer.Write(data); err != nil {
			return err
		}
		if err := w.writer.WriteByte('\n'); err != nil {
			return err
		}
		w.count++
	}
	return w.writer.Flush()
}

// Close flushes and closes the output
func (w *JSONLWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return closeOutput(w.file)
}

// Count returns the number of lines written
func (w *JSONLWriter) Count() int {
	return w.count
}
