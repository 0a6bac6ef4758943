// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// IngestionLogRepository implements storage.IngestionLogRepository for BadgerDB.
// Logs are keyed by start time so listing newest first is a reverse scan.
type IngestionLogRepository struct {
	backend *Backend
}

var _ storage.IngestionLogRepository = (*IngestionLogRepository)(nil)

// NewIngestionLogRepository creates a new IngestionLogRepository.
func NewIngestionLogRepository(backend *Backend) *IngestionLogRepository {
	return &IngestionLogRepository{
		backend: backend,
	}
}

// CreateLog persists a new running log.
func (r *IngestionLogRepository) CreateLog(ctx context.Context, log *core.IngestionLog) error {
	if log.ID == "" {
		return fmt.Errorf("%w: log id is required", core.ErrValidation)
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = nowUTC()
	}
	if log.Status == "" {
		log.Status = core.JobRunning
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		idKey := makeIngestLogIDKey(log.ID)
		if _, err := tx.Get(idKey); err == nil {
			return fmt.Errorf("%w: log %s", storage.ErrDuplicateKey, log.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		key := makeIngestLogKey(log.StartedAt, log.ID)
		if err := tx.Set(key, storage.MarshalIngestionLog(log)); err != nil {
			return err
		}
		return tx.Set(idKey, key)
	})
}

// FinalizeLog stores the final state of a log. A log is finalized once.
func (r *IngestionLogRepository) FinalizeLog(ctx context.Context, log *core.IngestionLog) error {
	if !log.Status.Terminal() {
		return fmt.Errorf("%w: final status must be terminal, got %s", core.ErrValidation, log.Status)
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		key, stored, err := readLogByID(tx, log.ID)
		if err != nil {
			return err
		}
		if stored.Finalized() {
			return fmt.Errorf("%w: log %s", storage.ErrAlreadyFinalized, log.ID)
		}
		if log.FinishedAt.IsZero() {
			log.FinishedAt = nowUTC()
		}
		// Identity fields are fixed at creation
		log.StartedAt = stored.StartedAt
		log.JobID = stored.JobID
		return tx.Set(key, storage.MarshalIngestionLog(log))
	})
}

// GetLog retrieves a log by id.
func (r *IngestionLogRepository) GetLog(ctx context.Context, id string) (*core.IngestionLog, error) {
	var log *core.IngestionLog
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		_, log, err = readLogByID(tx, id)
		return err
	})
	return log, err
}

// ListLogs returns a page of logs, most recent first.
func (r *IngestionLogRepository) ListLogs(ctx context.Context, limit, offset int) ([]*core.IngestionLog, int, error) {
	var logs []*core.IngestionLog
	total := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ingestLogPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefixEnd(ingestLogPrefix)); iter.Valid(); iter.Next() {
			index := total
			total++
			if index < offset || (limit > 0 && index >= offset+limit) {
				continue
			}
			var log *core.IngestionLog
			err := iter.Item().Value(func(val []byte) error {
				var err error
				log, err = storage.UnmarshalIngestionLog(val)
				return err
			})
			if err != nil {
				return err
			}
			logs = append(logs, log)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func readLogByID(tx *badger.Txn, id string) ([]byte, *core.IngestionLog, error) {
	idEntry, err := tx.Get(makeIngestLogIDKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: log %s", storage.ErrNotFound, id)
		}
		return nil, nil, err
	}
	key, err := idEntry.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	entry, err := tx.Get(key)
	if err != nil {
		return nil, nil, err
	}
	var log *core.IngestionLog
	err = entry.Value(func(val []byte) error {
		var err error
		log, err = storage.UnmarshalIngestionLog(val)
		return err
	})
	return key, log, err
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
