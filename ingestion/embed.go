package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/storage"
)

// embedStage generates vectors for the items a job selects.
type embedStage struct {
	catalog  storage.CatalogRepository
	embedder ai.Embedder
	sink     storage.VectorSink
	config   *reembed.Config
	logger   *slog.Logger
}

var _ stage = (*embedStage)(nil)

func (es *embedStage) name() string { return "embed" }

func (es *embedStage) run(ctx context.Context, job *core.Job, state *runState) error {
	if es.embedder == nil {
		return ErrEmbedderUnavailable
	}

	reembedder := reembed.NewReembedder(es.catalog, es.embedder, es.config, nil).WithLogger(es.logger)
	if es.sink != nil {
		reembedder.WithVectorSink(es.sink)
	}

	result, err := reembedder.Run(ctx, reembed.Target{
		Force:      job.Payload.ForceEmbed,
		Items:      job.Payload.ItemNumbers,
		BatchSize:  job.Payload.EffectiveBatchSize(),
		ShouldStop: state.stopRequested,
	})
	if result != nil {
		state.counts.Embedded += result.Embedded
		state.counts.Failed += result.Failed
		for _, msg := range result.Errors {
			state.recordError("embed %s", msg)
		}
	}
	if err != nil {
		return err
	}

	es.logger.Info("embedding finished",
		"selected", result.Selected,
		"embedded", result.Embedded,
		"stale", result.Stale,
		"failed", result.Failed)

	if result.Stopped {
		return ErrCancelled
	}
	return nil
}
