package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// BatchProcessor handles embedding generation for batches of catalog items.
type BatchProcessor struct {
	repo           storage.CatalogRepository
	embedder       ai.Embedder
	sink           storage.VectorSink
	dimensions     int
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.CatalogRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default().With("component", "batch-processor"),
	}
}

// WithVectorSink mirrors stored vectors to sink after each batch.
func (bp *BatchProcessor) WithVectorSink(sink storage.VectorSink) *BatchProcessor {
	bp.sink = sink
	return bp
}

// WithDimensions rejects vectors that are not dim long.
func (bp *BatchProcessor) WithDimensions(dim int) *BatchProcessor {
	bp.dimensions = dim
	return bp
}

func (bp *BatchProcessor) WithLogger(logger *slog.Logger) *BatchProcessor {
	bp.logger = logger.With("component", "batch-processor")
	return bp
}

// Process embeds a batch of items and stores the vectors. It returns how many
// items were updated; items whose content changed since they were read are
// left alone and not counted.
func (bp *BatchProcessor) Process(ctx context.Context, items []*core.CatalogItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.EmbeddingText()
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(items) {
			return Permanent(fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(items), len(vectors)))
		}
		for i, v := range vectors {
			if err := CheckVector(v, bp.dimensions); err != nil {
				return Permanent(fmt.Errorf("item %d: %w", items[i].Number, err))
			}
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embeddings := make([]storage.Embedding, len(items))
	for i, item := range items {
		embeddings[i] = storage.Embedding{
			Number:   item.Number,
			Checksum: item.Checksum,
			Vector:   NormalizeVector(vectors[i]),
		}
	}

	updated, err := bp.repo.SetEmbeddings(ctx, embeddings...)
	if err != nil {
		return 0, fmt.Errorf("failed to store embeddings: %w", err)
	}

	if bp.sink != nil && len(updated) > 0 {
		err := RetryWithBackoff(ctx, func() error {
			return bp.sink.UpsertVectors(ctx, updated...)
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			// The catalog store stays authoritative; the mirror catches up on the next forced run
			bp.logger.Warn("failed to mirror vectors", "count", len(updated), "err", err)
		}
	}

	return len(updated), nil
}
