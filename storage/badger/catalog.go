package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// CatalogRepository implements storage.CatalogRepository for BadgerDB.
type CatalogRepository struct {
	backend *Backend
	locks   itemLocks
}

var _ storage.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(backend *Backend) *CatalogRepository {
	return &CatalogRepository{
		backend: backend,
	}
}

// Close releases resources. CatalogRepository has no resources to release.
func (r *CatalogRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *CatalogRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// UpsertItems creates or replaces items keyed by item number.
func (r *CatalogRepository) UpsertItems(ctx context.Context, force bool, items ...*core.CatalogItem) ([]storage.UpsertResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	numbers := make([]core.ItemNumber, len(items))
	for i, item := range items {
		numbers[i] = item.Number
	}
	unlock := r.locks.lock(numbers...)
	defer unlock()

	results := make([]storage.UpsertResult, 0, len(items))
	err := r.backend.Update(func(tx *badger.Txn) error {
		results = results[:0]
		now := time.Now().UTC()
		for _, item := range items {
			key := makeItemKey(item.Number)
			existing, err := readItem(tx, key)
			if err != nil {
				return err
			}

			checksum := item.SourceChecksum()
			outcome := storage.OutcomeCreated
			if existing != nil {
				if !force && existing.Checksum == checksum {
					results = append(results, storage.UpsertResult{Number: item.Number, Outcome: storage.OutcomeSkipped})
					continue
				}
				outcome = storage.OutcomeUpdated
				item.InsertedAt = existing.InsertedAt
				// Unchanged content keeps its embedding
				if existing.Checksum == checksum {
					item.Vector = existing.Vector
					item.EmbeddedAt = existing.EmbeddedAt
				} else {
					item.Vector = nil
					item.EmbeddedAt = time.Time{}
				}
			} else {
				item.InsertedAt = now
			}
			item.Checksum = checksum
			item.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalCatalogItem(item)); err != nil {
				return err
			}
			results = append(results, storage.UpsertResult{Number: item.Number, Outcome: outcome})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetItem retrieves a single item by number.
func (r *CatalogRepository) GetItem(ctx context.Context, number core.ItemNumber) (*core.CatalogItem, error) {
	var result *core.CatalogItem
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readItem(tx, makeItemKey(number))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: item %d", storage.ErrNotFound, number)
		}
		return nil
	})
	return result, err
}

// GetItems retrieves multiple items. Missing numbers are skipped.
func (r *CatalogRepository) GetItems(ctx context.Context, numbers ...core.ItemNumber) ([]*core.CatalogItem, error) {
	var result []*core.CatalogItem
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, number := range numbers {
			item, err := readItem(tx, makeItemKey(number))
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	})
	return result, err
}

// ForEachItem calls fn for every item in item number order.
func (r *CatalogRepository) ForEachItem(ctx context.Context, fn func(*core.CatalogItem) error) error {
	return r.backend.View(func(tx *badger.Txn) error {
		return scanItems(tx, func(item *core.CatalogItem) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(item)
		})
	})
}

// ItemsNeedingEmbedding selects embed candidates.
func (r *CatalogRepository) ItemsNeedingEmbedding(ctx context.Context, force bool, subset ...core.ItemNumber) ([]core.ItemNumber, error) {
	var result []core.ItemNumber

	if len(subset) > 0 {
		targets := slices.Clone(subset)
		slices.Sort(targets)
		targets = slices.Compact(targets)
		items, err := r.GetItems(ctx, targets...)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			result = append(result, item.Number)
		}
		return result, nil
	}

	err := r.ForEachItem(ctx, func(item *core.CatalogItem) error {
		if force || !item.HasEmbedding() {
			result = append(result, item.Number)
		}
		return nil
	})
	return result, err
}

// SetEmbeddings stores vectors for existing items.
func (r *CatalogRepository) SetEmbeddings(ctx context.Context, embeddings ...storage.Embedding) ([]*core.CatalogItem, error) {
	if len(embeddings) == 0 {
		return nil, nil
	}
	numbers := make([]core.ItemNumber, len(embeddings))
	for i, e := range embeddings {
		numbers[i] = e.Number
	}
	unlock := r.locks.lock(numbers...)
	defer unlock()

	var updated []*core.CatalogItem
	err := r.backend.Update(func(tx *badger.Txn) error {
		updated = updated[:0]
		now := time.Now().UTC()
		for _, e := range embeddings {
			key := makeItemKey(e.Number)
			item, err := readItem(tx, key)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("%w: item %d", storage.ErrNotFound, e.Number)
			}
			if item.Checksum != e.Checksum {
				r.backend.logger.Debug("dropping stale embedding", "item", e.Number)
				continue
			}
			item.Vector = e.Vector
			item.EmbeddedAt = now
			if err := tx.Set(key, storage.MarshalCatalogItem(item)); err != nil {
				return err
			}
			updated = append(updated, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeactivateMissing marks active items absent from present as inactive.
func (r *CatalogRepository) DeactivateMissing(ctx context.Context, present map[core.ItemNumber]struct{}) (int, error) {
	unlock := r.locks.lockAll()
	defer unlock()

	var stale []*core.CatalogItem
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanItems(tx, func(item *core.CatalogItem) error {
			if _, ok := present[item.Number]; !ok && item.Active {
				stale = append(stale, item)
			}
			return nil
		})
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, item := range stale {
			item.Active = false
			item.Checksum = item.SourceChecksum()
			item.UpdatedAt = now
			if err := tx.Set(makeItemKey(item.Number), storage.MarshalCatalogItem(item)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Counts returns grouped item counts.
func (r *CatalogRepository) Counts(ctx context.Context) (*storage.CatalogCounts, error) {
	counts := &storage.CatalogCounts{
		ByCategory:     make(map[string]int),
		ByProviderType: make(map[core.ProviderType]int),
	}
	err := r.ForEachItem(ctx, func(item *core.CatalogItem) error {
		counts.Total++
		if item.Active {
			counts.Active++
		}
		if item.HasEmbedding() {
			counts.Embedded++
		}
		if item.Category != "" {
			counts.ByCategory[item.Category]++
		}
		counts.ByProviderType[item.ProviderType]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Helper methods

// scanItems decodes every catalog item in key order.
func scanItems(tx *badger.Txn, fn func(*core.CatalogItem) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(catalogItemPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var item *core.CatalogItem
		err := iter.Item().Value(func(val []byte) error {
			var err error
			item, err = storage.UnmarshalCatalogItem(val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// readItem reads an item from the transaction. Returns nil, nil when the
// item doesn't exist.
func readItem(tx *badger.Txn, key []byte) (*core.CatalogItem, error) {
	entry, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var item *core.CatalogItem
	err = entry.Value(func(val []byte) error {
		var err error
		item, err = storage.UnmarshalCatalogItem(val)
		return err
	})
	return item, err
}
