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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// Config holds configuration for an embed run.
type Config struct {
	// BatchSize is the number of items to embed per provider call
	BatchSize int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Dimensions, when set, rejects vectors of any other length
	Dimensions int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      core.DefaultEmbedBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Target selects which items a run embeds.
type Target struct {
	// Force re-embeds items that already have a vector.
	Force bool

	// Items restricts the run to these item numbers.
	Items []core.ItemNumber

	// BatchSize overrides Config.BatchSize when positive.
	BatchSize int

	// ShouldStop is consulted before each batch; true ends the run early.
	ShouldStop func() bool
}

// Result summarizes an embed run.
type Result struct {
	Selected int
	Embedded int
	Stale    int // changed during the run, left for a later pass
	Failed   int
	Errors   []string
	Stopped  bool
}

var errStopped = errors.New("stopped")

// Reembedder runs embedding over a selection of catalog items.
type Reembedder struct {
	repo      storage.CatalogRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output, or nil for none
func NewReembedder(repo storage.CatalogRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	processor := NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay).
		WithDimensions(config.Dimensions)

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: processor,
		logger:    slog.Default().With("component", "reembedder"),
	}
}

// WithVectorSink mirrors stored vectors to sink.
func (r *Reembedder) WithVectorSink(sink storage.VectorSink) *Reembedder {
	r.processor.WithVectorSink(sink)
	return r
}

func (r *Reembedder) WithLogger(logger *slog.Logger) *Reembedder {
	r.logger = logger.With("component", "reembedder")
	r.processor.WithLogger(logger)
	return r
}

// Run embeds the items target selects. A batch that still fails after its
// retries is counted in Result.Failed and the run moves on. Only selection
// errors and context cancellation end the run with an error.
func (r *Reembedder) Run(ctx context.Context, target Target) (*Result, error) {
	numbers, err := r.repo.ItemsNeedingEmbedding(ctx, target.Force, target.Items...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}

	result := &Result{Selected: len(numbers)}
	if len(numbers) == 0 {
		if r.progress != nil {
			fmt.Fprintf(r.progress, "No items need embedding\n")
		}
		return result, nil
	}

	batchSize := r.config.BatchSize
	if target.BatchSize > 0 {
		batchSize = target.BatchSize
	}
	iterator := NewItemIterator(r.repo, batchSize)

	var tracker *ProgressTracker
	if r.progress != nil {
		fmt.Fprintf(r.progress, "Embedding %d items (batch size: %d)\n", len(numbers), iterator.BatchSize())
		tracker = NewProgressTracker(r.progress, len(numbers), r.config.ReportInterval)
		tracker.Start()
	}

	err = iterator.ForEach(ctx, numbers, func(items []*core.CatalogItem) error {
		if target.ShouldStop != nil && target.ShouldStop() {
			result.Stopped = true
			return errStopped
		}

		n, err := r.processor.Process(ctx, items)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			first, last := items[0].Number, items[len(items)-1].Number
			r.logger.Warn("embedding batch failed", "first", first, "last", last, "size", len(items), "err", err)
			result.Failed += len(items)
			result.Errors = append(result.Errors, fmt.Sprintf("items %d-%d: %v", first, last, err))
		} else {
			result.Embedded += n
			result.Stale += len(items) - n
		}

		if tracker != nil {
			failed := 0
			if err != nil {
				failed = len(items)
			}
			tracker.Increment(len(items), failed)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopped) {
		return result, err
	}

	if tracker != nil {
		tracker.Finish()
		elapsed := tracker.Elapsed()
		fmt.Fprintf(r.progress, "Embedding complete. %d embedded, %d failed in %v\n",
			result.Embedded, result.Failed, elapsed.Round(time.Millisecond))
	}
	return result, nil
}
