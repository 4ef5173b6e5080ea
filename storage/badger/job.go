package badger

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

// JobStore implements storage.JobStore for BadgerDB.
//
// Claiming relies on Badger's serializable snapshot isolation: each claim
// re-reads the job inside its own write transaction, and a concurrent
// commit against the same key fails with ErrConflict. The loser treats the
// conflict as a lost race, never as an error.
type JobStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.JobStore = (*JobStore)(nil)

// NewJobStore creates a new JobStore.
func NewJobStore(backend *Backend) *JobStore {
	return &JobStore{
		backend: backend,
		logger:  slog.Default().With("component", "job-store"),
	}
}

// Close implements storage.JobStore. The backend is shared and closed
// separately.
func (s *JobStore) Close() error {
	return nil
}

// EnqueueJob inserts a job for its subject dream.
func (s *JobStore) EnqueueJob(ctx context.Context, job *core.Job) error {
	if job.Status == 0 {
		job.Status = core.JobStatusPending
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = time.Now().UTC()
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.DreamId)
		existing, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Terminal() {
			return storage.ErrJobExists
		}

		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves the job for a dream.
func (s *JobStore) GetJob(ctx context.Context, dreamId core.ID) (*core.Job, error) {
	var result *core.Job
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readJob(tx, makeJobKey(dreamId))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// UpdateJob overwrites the job row for its subject dream.
func (s *JobStore) UpdateJob(ctx context.Context, job *core.Job) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.DreamId)
		existing, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}

		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ClaimPending atomically claims up to limit due pending jobs.
func (s *JobStore) ClaimPending(ctx context.Context, now time.Time, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	candidates, err := s.duePending(now)
	if err != nil {
		return nil, err
	}

	// priority desc, scheduled_at asc
	slices.SortFunc(candidates, func(a, b *core.Job) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})

	claimed := make([]*core.Job, 0, limit)
	for _, candidate := range candidates {
		if len(claimed) == limit {
			break
		}

		job, err := s.claimOne(candidate.DreamId, now)
		if err != nil {
			return claimed, err
		}
		if job != nil {
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

// duePending scans for pending jobs whose ScheduledAt has passed.
func (s *JobStore) duePending(now time.Time) ([]*core.Job, error) {
	var candidates []*core.Job
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				job, err := storage.UnmarshalJob(val)
				if err != nil {
					return err
				}
				if job.Status == core.JobStatusPending && !job.ScheduledAt.After(now) {
					candidates = append(candidates, job)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// claimOne performs the conditional pending->processing transition for a
// single job. Returns nil (no error) when another claimer won the race.
func (s *JobStore) claimOne(dreamId core.ID, now time.Time) (*core.Job, error) {
	var claimed *core.Job
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(dreamId)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		// Guard on current status still being pending; a zero-row
		// conditional update means another worker already holds it.
		if job == nil || job.Status != core.JobStatusPending || job.ScheduledAt.After(now) {
			return nil
		}

		job.Status = core.JobStatusProcessing
		job.Attempts++
		job.StartedAt = now

		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		claimed = job
		return nil
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		s.logger.Debug("claim lost to concurrent worker", "dreamId", dreamId)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ResetStale resets jobs stuck in processing since before cutoff back to
// pending.
func (s *JobStore) ResetStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.staleProcessing(cutoff)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, dreamId := range stale {
		ok, err := s.resetOne(dreamId, cutoff)
		if err != nil {
			return reset, err
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}

func (s *JobStore) staleProcessing(cutoff time.Time) ([]core.ID, error) {
	var stale []core.ID
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				job, err := storage.UnmarshalJob(val)
				if err != nil {
					return err
				}
				if job.Status == core.JobStatusProcessing && job.StartedAt.Before(cutoff) {
					stale = append(stale, job.DreamId)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// resetOne resets a single stale job. Re-checks staleness inside the write
// transaction so concurrent sweeps are idempotent: resetting an
// already-reset job is a no-op.
func (s *JobStore) resetOne(dreamId core.ID, cutoff time.Time) (bool, error) {
	didReset := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(dreamId)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil || job.Status != core.JobStatusProcessing || !job.StartedAt.Before(cutoff) {
			return nil
		}

		job.Status = core.JobStatusPending
		job.StartedAt = time.Time{}

		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		didReset = true
		return nil
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		// A concurrent sweep or claim got there first.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return didReset, nil
}

// readJob reads and unmarshals a job, returning nil if absent.
func readJob(tx *badger.Txn, key []byte) (*core.Job, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
