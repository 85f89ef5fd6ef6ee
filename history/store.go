// Package history persists validation run summaries in a local bbolt
// database so past outcomes can be inspected without re-running.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bucketlint/bucketlint/validator"
)

// Bucket names in bbolt
var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")
)

var keySequence = []byte("sequence")

// Run is one recorded validation run
type Run struct {
	Sequence   int64     `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	OK         bool      `json:"ok"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Warned     int       `json:"warned"`
	Violations int       `json:"violations"`
	DurationMS float64   `json:"duration_ms"`
}

// FromReport builds a run record from a finished report
func FromReport(report *validator.Report, duration time.Duration) Run {
	return Run{
		Timestamp:  time.Now().UTC(),
		OK:         report.OK(),
		Passed:     report.Counts.Passed,
		Failed:     report.Counts.Failed,
		Warned:     report.Counts.Warned,
		Violations: len(report.Violations),
		DurationMS: float64(duration.Microseconds()) / 1000.0,
	}
}

// Store is an append-only run log
type Store struct {
	mu  sync.Mutex
	db  *bbolt.DB
	seq int64
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{db: db}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		if raw := tx.Bucket(bucketMeta).Get(keySequence); raw != nil {
			store.seq = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one run to the log
func (s *Store) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.Sequence = s.seq + 1

	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put(int64ToBytes(run.Sequence), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySequence, int64ToBytes(run.Sequence))
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.seq = run.Sequence
	return nil
}

// List returns the most recent runs, newest first. A limit of zero
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketRuns).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(value, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return runs, nil
}

// Len returns the number of recorded runs
func (s *Store) Len() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketRuns).Stats().KeyN
		return nil
	})
	return count, err
}

func int64ToBytes(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}
