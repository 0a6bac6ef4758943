package search

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poiesic/schedex/ai/mock"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
	"github.com/poiesic/schedex/storage/badger"
)

type fixture struct {
	number   core.ItemNumber
	desc     string
	category string
	provider core.ProviderType
	fee      float64
	active   bool
	vector   []float32
}

var fixtures = []fixture{
	{23, "Professional attendance by a general practitioner, level B consultation", "1", core.ProviderGeneral, 41.40, true, []float32{1, 0, 0}},
	{36, "Professional attendance, level C consultation lasting at least 20 minutes", "1", core.ProviderGeneral, 80.10, true, []float32{0.8, 0.6, 0}},
	{104, "Specialist referred initial attendance", "1", core.ProviderSpecialist, 95.35, false, []float32{1, 0, 0}},
	{10990, "Bulk billing incentive for a consultation with a child", "2", core.ProviderGeneral, 7.10, true, []float32{0, 1, 0}},
	{30071, "Diagnostic biopsy of skin lesion", "3", core.ProviderSpecialist, 55.30, true, []float32{0, 0, 1}},
}

// queryVectors maps query text to the vector the mock embedder returns.
var queryVectors = map[string][]float32{
	"consultation": {1, 0, 0},
	"skin biopsy":  {0, 0, 1},
}

func setupCatalog(t *testing.T) *badger.MemoryRepositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	ctx := context.Background()
	for _, f := range fixtures {
		item := &core.CatalogItem{
			Number:       f.number,
			Description:  f.desc,
			Category:     f.category,
			ProviderType: f.provider,
			Fees:         core.Fees{Schedule: f.fee},
			Active:       f.active,
		}
		_, err := repos.Catalog.UpsertItems(ctx, false, item)
		require.NoError(t, err)
		_, err = repos.Catalog.SetEmbeddings(ctx, storage.Embedding{Number: f.number, Checksum: item.Checksum, Vector: f.vector})
		require.NoError(t, err)
	}
	return repos
}

func queryEmbedder() *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := queryVectors[text]; ok {
			return v, nil
		}
		return []float32{0.577, 0.577, 0.577}, nil
	}
	return embedder
}

// countingCatalog records how often items are scanned.
type countingCatalog struct {
	storage.CatalogRepository
	scans atomic.Int32
}

func (c *countingCatalog) ForEachItem(ctx context.Context, fn func(*core.CatalogItem) error) error {
	c.scans.Add(1)
	return c.CatalogRepository.ForEachItem(ctx, fn)
}

func numbers(results []*Result) []core.ItemNumber {
	out := make([]core.ItemNumber, len(results))
	for i, r := range results {
		out[i] = r.Item.Number
	}
	return out
}

func fee(v float64) *float64 {
	return &v
}
