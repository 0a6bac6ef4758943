package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
// Status transitions rely on badger's conflict detection: two transactions
// that read and rewrite the same job cannot both commit.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{
		backend: backend,
	}
}

// CreateJob persists a new job.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		existing, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.ID)
		}
		return tx.Set(key, storage.MarshalJob(job))
	})
}

// GetJob retrieves a job by id.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %s", storage.ErrNotFound, id)
		}
		return nil
	})
	return job, err
}

// ListJobs returns jobs in the given statuses, oldest first.
func (r *JobRepository) ListJobs(ctx context.Context, statuses ...core.JobStatus) ([]*core.Job, error) {
	var jobs []*core.Job
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanJobs(tx, func(job *core.Job) error {
			if len(statuses) == 0 || slices.Contains(statuses, job.Status) {
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(jobs, func(a, b *core.Job) int {
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

// TransitionJob moves a job from one status to another atomically.
func (r *JobRepository) TransitionJob(ctx context.Context, id string, from, to core.JobStatus, mutate func(*core.Job)) (*core.Job, error) {
	return r.UpdateJob(ctx, id, func(job *core.Job) error {
		if job.Status != from {
			return fmt.Errorf("%w: job %s is %s, expected %s", storage.ErrConflict, id, job.Status, from)
		}
		if mutate != nil {
			mutate(job)
		}
		if job.Status != from {
			return fmt.Errorf("%w: mutate must not change status", core.ErrInvalidTransition)
		}
		return job.Transition(to, nowUTC())
	})
}

// UpdateJob applies fn to the stored job and saves it.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, fn func(*core.Job) error) (*core.Job, error) {
	var job *core.Job
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeJobKey(id)
		var err error
		job, err = readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %s", storage.ErrNotFound, id)
		}
		if err := fn(job); err != nil {
			return err
		}
		return tx.Set(key, storage.MarshalJob(job))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJobs removes every job remove selects.
func (r *JobRepository) DeleteJobs(ctx context.Context, remove func(*core.Job) bool) (int, error) {
	deleted := 0
	err := r.backend.Update(func(tx *badger.Txn) error {
		var victims [][]byte
		err := scanJobs(tx, func(job *core.Job) error {
			if remove(job) {
				victims = append(victims, makeJobKey(job.ID))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range victims {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(victims)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountByStatus counts jobs per status.
func (r *JobRepository) CountByStatus(ctx context.Context) (*core.QueueStats, error) {
	stats := &core.QueueStats{}
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanJobs(tx, func(job *core.Job) error {
			stats.Total++
			switch job.Status {
			case core.JobQueued:
				stats.Queued++
			case core.JobRunning:
				stats.Running++
			case core.JobCompleted:
				stats.Completed++
			case core.JobFailed:
				stats.Failed++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanJobs(tx *badger.Txn, fn func(*core.Job) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(jobPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var job *core.Job
		err := iter.Item().Value(func(val []byte) error {
			var err error
			job, err = storage.UnmarshalJob(val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
	}
	return nil
}

func readJob(tx *badger.Txn, key []byte) (*core.Job, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var job *core.Job
	err = entry.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
