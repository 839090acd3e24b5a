package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

const jobPrefix = "job:"

// JobUpdated is emitted after a job record is created or updated.
type JobUpdated struct {
	Job *domain.JobRecord
}

// CreateJob stores a new job record.
// Returns ErrAlreadyExists if a job with this ID already exists.
func (s *Store) CreateJob(ctx context.Context, job *domain.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(jobPrefix + job.ID)

		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set job: %w", err)
		}
		return txn.Set(indexKey(jobPrefix, "status", string(job.Status), job.ID), []byte(job.ID))
	})
	if err != nil {
		return err
	}

	s.emit(job)
	return nil
}

// GetJob retrieves a job record by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(jobPrefix, id)
	defer releaseKey(key)

	var job domain.JobRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob replaces an existing job record and moves its status index.
func (s *Store) UpdateJob(ctx context.Context, job *domain.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(jobPrefix + job.ID)

		var old domain.JobRecord
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get existing: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return fmt.Errorf("unmarshal old job: %w", err)
		}

		if old.Status != job.Status {
			if err := txn.Delete(indexKey(jobPrefix, "status", string(old.Status), job.ID)); err != nil {
				return fmt.Errorf("delete status index: %w", err)
			}
			if err := txn.Set(indexKey(jobPrefix, "status", string(job.Status), job.ID), []byte(job.ID)); err != nil {
				return fmt.Errorf("set status index: %w", err)
			}
		}

		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	s.emit(job)
	return nil
}

// DeleteJob removes a job record. Deleting a missing job is not an error.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(jobPrefix + id)

		var job domain.JobRecord
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		}); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}

		if err := txn.Delete(indexKey(jobPrefix, "status", string(job.Status), id)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListJobs returns all job records, most recently started first.
func (s *Store) ListJobs(ctx context.Context) ([]*domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var jobs []*domain.JobRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if strings.HasPrefix(string(it.Item().Key()[len(jobPrefix):]), "idx:") {
				continue
			}

			var job domain.JobRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return fmt.Errorf("unmarshal job: %w", err)
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *domain.JobRecord) int {
		return cmp.Compare(b.StartedAt.UnixNano(), a.StartedAt.UnixNano())
	})
	return jobs, nil
}

// ListJobsByStatus returns the jobs currently in status.
func (s *Store) ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := indexPrefix(jobPrefix, "status", string(status))
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]*domain.JobRecord, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// MarkInterrupted fails every job still recorded as running. It is called at
// startup, when no job can be running yet.
func (s *Store) MarkInterrupted(ctx context.Context) (int, error) {
	running, err := s.ListJobsByStatus(ctx, domain.JobStatusRunning)
	if err != nil {
		return 0, err
	}

	for _, job := range running {
		job.MarkFinished(domain.JobStatusFailed, "interrupted by shutdown")
		if err := s.UpdateJob(ctx, job); err != nil {
			return 0, err
		}
		s.logger.Warn("marked interrupted job as failed", slog.String("job_id", job.ID))
	}
	return len(running), nil
}

func (s *Store) emit(job *domain.JobRecord) {
	snapshot := *job
	s.eventEmitter.Emit(JobUpdated{Job: &snapshot})
}
