package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/schedex/ai/mock"
	"github.com/poiesic/schedex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(batchSize int) *Config {
	return &Config{
		BatchSize:      batchSize,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
}

func TestReembedder_Run(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedItems(t, repos, 5)

	var progress bytes.Buffer
	r := NewReembedder(repos.Catalog, mock.NewMockEmbedder(), testConfig(2), &progress)

	result, err := r.Run(ctx, Target{})
	require.NoError(t, err)
	assert.Equal(t, &Result{Selected: 5, Embedded: 5}, result)
	assert.Contains(t, progress.String(), "Embedding 5 items")
	assert.Contains(t, progress.String(), "5/5")

	t.Run("second run finds nothing", func(t *testing.T) {
		result, err := r.Run(ctx, Target{})
		require.NoError(t, err)
		assert.Zero(t, result.Selected)
	})

	t.Run("force re-embeds everything", func(t *testing.T) {
		result, err := r.Run(ctx, Target{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 5, result.Embedded)
	})

	t.Run("targeted subset", func(t *testing.T) {
		result, err := r.Run(ctx, Target{Items: []core.ItemNumber{2, 4, 404}})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Selected)
		assert.Equal(t, 2, result.Embedded)
	})
}

func TestReembedder_FailedBatchDoesNotStopRun(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedItems(t, repos, 6)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// The batch holding item 3 always fails
		for _, text := range texts {
			if text == "Item 3: Service item 3" {
				return nil, errors.New("provider rejected batch")
			}
		}
		return unnormalized(ctx, texts)
	}

	result, err := NewReembedder(repos.Catalog, embedder, testConfig(2), nil).Run(ctx, Target{})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Selected)
	assert.Equal(t, 4, result.Embedded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "items 3-4")

	for _, n := range []core.ItemNumber{3, 4} {
		stored, err := repos.Catalog.GetItem(ctx, n)
		require.NoError(t, err)
		assert.False(t, stored.HasEmbedding(), "item %d stays unembedded", n)
	}
}

func TestReembedder_ShouldStop(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	seedItems(t, repos, 6)

	batches := 0
	stop := func() bool {
		batches++
		return batches > 1
	}

	result, err := NewReembedder(repos.Catalog, mock.NewMockEmbedder(), testConfig(2), nil).
		Run(context.Background(), Target{ShouldStop: stop})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 2, result.Embedded)
}

func TestReembedder_BatchSizeOverride(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	seedItems(t, repos, 6)

	embedder := mock.NewMockEmbedder()
	_, err := NewReembedder(repos.Catalog, embedder, testConfig(50), nil).
		Run(context.Background(), Target{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestReembedder_ContextCancellation(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	seedItems(t, repos, 6)

	ctx, cancel := context.WithCancel(context.Background())
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(c context.Context, texts []string) ([][]float32, error) {
		cancel()
		return nil, c.Err()
	}

	_, err := NewReembedder(repos.Catalog, embedder, testConfig(2), nil).Run(ctx, Target{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReembedder_NothingToDo(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()

	var progress bytes.Buffer
	result, err := NewReembedder(repos.Catalog, mock.NewMockEmbedder(), nil, &progress).Run(context.Background(), Target{})
	require.NoError(t, err)
	assert.Zero(t, result.Selected)
	assert.Contains(t, progress.String(), "No items need embedding")
}
