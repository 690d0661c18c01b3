package output

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// ParquetRow is one port result, flattened with its host context
type ParquetRow struct {
	ScanID     string  `parquet:"scan_id,zstd,dict"`
	IP         string  `parquet:"ip,zstd,dict"`
	StartedAt  int64   `parquet:"started_at_ms"`
	Port       int32   `parquet:"port"`
	Status     string  `parquet:"status,zstd,dict"`
	Service    string  `parquet:"service,zstd,dict"`
	LatencyMs  float64 `parquet:"latency_ms"`
	Detail     string  `parquet:"detail,zstd"`
	ScanTimeMs int64   `parquet:"scan_time_ms"`
}

// ParquetWriter writes port results to a Parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ParquetRow]
	count  int
}

// NewParquetWriter creates a zstd-compressed Parquet writer
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[ParquetRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("portsweep", "1.0.0", "go"),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write appends one row per port of the report
func (w *ParquetWriter) Write(report *scanner.ScanReport) error {
	rows := reportToParquetRows(report)
	if _, err := w.writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	w.count += len(rows)
	return nil
}

// Close finalizes and closes the Parquet file
func (w *ParquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written
func (w *ParquetWriter) Count() int {
	return w.count
}

func reportToParquetRows(r *scanner.ScanReport) []ParquetRow {
	rows := make([]ParquetRow, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, ParquetRow{
			ScanID:     r.ScanID,
			IP:         r.IP,
			StartedAt:  r.StartedAt.UnixMilli(),
			Port:       int32(res.Port),
			Status:     string(res.Status),
			Service:    scanner.ServiceName(res.Port),
			LatencyMs:  res.LatencyMs,
			Detail:     res.Detail,
			ScanTimeMs: r.ScanTimeMs,
		})
	}
	return rows
}
