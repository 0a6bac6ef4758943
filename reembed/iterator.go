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


package reembed

import (
	"context"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

const (
	// DefaultBatchSize is the default number of items per embedding batch.
	DefaultBatchSize = core.DefaultEmbedBatchSize
)

// ItemIterator loads catalog items in batches.
type ItemIterator struct {
	repo      storage.CatalogRepository
	batchSize int
}

// NewItemIterator creates a new item iterator.
// batchSize: number of items per batch; out of range values use the default
func NewItemIterator(repo storage.CatalogRepository, batchSize int) *ItemIterator {
	if batchSize <= 0 || batchSize > core.MaxEmbedBatchSize {
		batchSize = DefaultBatchSize
	}
	return &ItemIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// BatchSize returns the effective batch size.
func (it *ItemIterator) BatchSize() int {
	return it.batchSize
}

// ForEach loads numbers in batches and calls fn for each batch. Items removed
// since selection are skipped, so a batch may be shorter than the batch size.
// Iteration stops on the first error from fn. Context cancellation is checked
// between batches.
func (it *ItemIterator) ForEach(ctx context.Context, numbers []core.ItemNumber, fn func([]*core.CatalogItem) error) error {
	for start := 0; start < len(numbers); start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+it.batchSize, len(numbers))
		items, err := it.repo.GetItems(ctx, numbers[start:end]...)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		if err := fn(items); err != nil {
			return err
		}
	}
	return nil
}
