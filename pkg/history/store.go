package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/velemoonkon/portsweep/pkg/scanner"
	"go.etcd.io/bbolt"
)

const (
	bucketScans  = "scans"  // scan ID -> report
	bucketLatest = "latest" // IP -> scan ID of the newest report
)

// ErrPartialReport is returned when saving a report of an interrupted scan
var ErrPartialReport = errors.New("refusing to store partial report")

var errNoBucket = errors.New("bucket not found")

// Store keeps past scan reports so that later scans can be compared
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketScans, bucketLatest} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a complete report and makes it the latest for its IP
func (s *Store) Save(report *scanner.ScanReport) error {
	if len(report.Unscanned) > 0 {
		return ErrPartialReport
	}
	if report.ScanID == "" || report.IP == "" {
		return errors.New("report needs a scan ID and IP")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		scans, latest := tx.Bucket([]byte(bucketScans)), tx.Bucket([]byte(bucketLatest))
		if scans == nil || latest == nil {
			return errNoBucket
		}
		if err := scans.Put([]byte(report.ScanID), data); err != nil {
			return err
		}
		return latest.Put([]byte(report.IP), []byte(report.ScanID))
	})
}

// Latest returns the newest stored report for ip
func (s *Store) Latest(ip string) (*scanner.ScanReport, bool, error) {
	var report *scanner.ScanReport

	err := s.db.View(func(tx *bbolt.Tx) error {
		scans, latest := tx.Bucket([]byte(bucketScans)), tx.Bucket([]byte(bucketLatest))
		if scans == nil || latest == nil {
			return errNoBucket
		}

		id := latest.Get([]byte(ip))
		if id == nil {
			return nil
		}
		v := scans.Get(id)
		if v == nil {
			return fmt.Errorf("scan %s for %s missing", id, ip)
		}

		var r scanner.ScanReport
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		report = &r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return report, report != nil, nil
}

// Count returns the number of stored reports
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketScans))
		if b == nil {
			return errNoBucket
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
