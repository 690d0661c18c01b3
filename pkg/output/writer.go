package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// ErrUnknownFormat is returned by New for an unsupported format name
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats
var Formats = []string{"text", "jsonl", "markdown", "parquet"}

// Writer receives one report per scanned host
type Writer interface {
	Write(report *scanner.ScanReport) error
	Close() error
}

// Options controls what the writers include
type Options struct {
	OpenOnly bool // Only list open ports in text and markdown tables
}

// New creates a writer for format. An empty filename or "-" writes to stdout.
func New(format, filename string, opts Options) (Writer, error) {
	switch format {
	case "text", "":
		return NewTextWriter(filename, opts)
	case "jsonl":
		return NewJSONLWriter(filename)
	case "markdown":
		return NewMarkdownWriter(filename, opts), nil
	case "parquet":
		if isStdout(filename) {
			return nil, errors.New("parquet output needs a file name")
		}
		return NewParquetWriter(filename)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownFormat, format, Formats)
	}
}

func isStdout(filename string) bool {
	return filename == "" || filename == "-"
}

// openOutput returns stdout or a newly created file
func openOutput(filename string) (*os.File, error) {
	if isStdout(filename) {
		return os.Stdout, nil
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}

// closeOutput closes file unless it is stdout
func closeOutput(file *os.File) error {
	if file == nil || file == os.Stdout {
		return nil
	}
	return file.Close()
}

// visible returns the rows a table should show
func visible(report *scanner.ScanReport, openOnly bool) []scanner.Result {
	if !openOnly {
		return report.Results
	}
	var rows []scanner.Result
	for _, res := range report.Results {
		if res.Status == scanner.StatusOpen {
			rows = append(rows, res)
		}
	}
	return rows
}

// WriteAtomic writes data to a temp file in the same directory and renames
// it over path, so readers never see a partial file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".portsweep-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
