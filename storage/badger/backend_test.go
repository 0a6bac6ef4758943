package badger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileInsteadOfDirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

	backend, err := OpenBackend(tmpFile, false)
	if err == nil {
		backend.Close()
	}
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestFindSimilar_NoRecords(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilar(context.Background(), []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func seedVectors(t *testing.T, repos *MemoryRepositories, vectors map[core.ItemNumber][]float32) {
	t.Helper()
	ctx := context.Background()
	var embeddings []storage.Embedding
	for number, vector := range vectors {
		item := &core.CatalogItem{Number: number, Description: "item", ProviderType: core.ProviderGeneral, Active: true}
		_, err := repos.Catalog.UpsertItems(ctx, false, item)
		require.NoError(t, err)
		if vector != nil {
			embeddings = append(embeddings, storage.Embedding{Number: number, Checksum: item.Checksum, Vector: vector})
		}
	}
	_, err := repos.Catalog.SetEmbeddings(ctx, embeddings...)
	require.NoError(t, err)
}

func TestFindSimilar_WithItems(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	seedVectors(t, repos, map[core.ItemNumber][]float32{
		1: {1, 0, 0},
		2: {0.6, 0.8, 0},
		3: {0, 1, 0},
		4: {-1, 0, 0},
		5: nil, // never embedded
	})

	results, err := repos.Backend.FindSimilar(context.Background(), []float32{1, 0, 0}, -1, 10)
	require.NoError(t, err)
	require.Len(t, results, 4, "items without embeddings are not candidates")

	assert.Equal(t, core.ItemNumber(1), results[0].Number)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
	assert.Equal(t, core.ItemNumber(2), results[1].Number)
	assert.Equal(t, core.ItemNumber(3), results[2].Number)
	assert.Equal(t, core.ItemNumber(4), results[3].Number)
	assert.InDelta(t, -1.0, results[3].Score, 0.0001)
}

func TestFindSimilar_ThresholdAndLimit(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	seedVectors(t, repos, map[core.ItemNumber][]float32{
		10: {1, 0},
		11: {0.8, 0.6},
		12: {0, 1},
	})

	ctx := context.Background()

	results, err := repos.Backend.FindSimilar(ctx, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = repos.Backend.FindSimilar(ctx, []float32{1, 0}, -1, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ItemNumber(10), results[0].Number)
}

func TestFindSimilar_SkipsDimensionMismatch(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	seedVectors(t, repos, map[core.ItemNumber][]float32{
		1: {1, 0, 0},
		2: {1, 0},
	})

	results, err := repos.Backend.FindSimilar(context.Background(), []float32{1, 0}, -1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ItemNumber(2), results[0].Number)
}

func TestFindSimilar_CancelledContext(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	seedVectors(t, repos, map[core.ItemNumber][]float32{1: {1, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repos.Backend.FindSimilar(ctx, []float32{1, 0}, -1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{1.0, 0.0, 0.0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: -1.0,
		},
		{
			name:     "general case",
			a:        []float32{0.6, 0.8},
			b:        []float32{0.8, 0.6},
			expected: 0.96, // 0.6*0.8 + 0.8*0.6 = 0.48 + 0.48 = 0.96
		},
		{
			name:     "different lengths - use min",
			a:        []float32{1.0, 2.0, 3.0},
			b:        []float32{1.0, 2.0},
			expected: 5.0, // 1*1 + 2*2 = 5
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "zero vectors",
			a:        []float32{0.0, 0.0, 0.0},
			b:        []float32{0.0, 0.0, 0.0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dotProduct(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 0.0001)
		})
	}
}

func TestUpdate_CommitsOnSuccess(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	key := []byte("test:key")
	err = backend.Update(func(tx *badger.Txn) error {
		return tx.Set(key, []byte("value"))
	})
	require.NoError(t, err)

	err = backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		return err
	})
	assert.NoError(t, err)
}

func TestUpdate_DiscardsOnError(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	key := []byte("test:key")
	boom := errors.New("boom")
	err = backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(key, []byte("value")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("inglog;"), prefixEnd("inglog:"))
	assert.Equal(t, []byte("b"), prefixEnd("a\xff"))
	assert.Nil(t, prefixEnd("\xff\xff"))
}
