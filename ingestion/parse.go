package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/schedule"
	"github.com/poiesic/schedex/storage"
)

// parseStage reads a schedule source and upserts its items.
type parseStage struct {
	catalog   storage.CatalogRepository
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

var _ stage = (*parseStage)(nil)

func (ps *parseStage) name() string { return "parse" }

func (ps *parseStage) run(ctx context.Context, job *core.Job, state *runState) error {
	payload := job.Payload
	reader, err := schedule.Open(payload.Source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	defer reader.Close()

	ps.logger.Info("parsing schedule", "source", payload.Source, "force", payload.ForceReprocess)

	now := ps.now()
	present := make(map[core.ItemNumber]struct{})
	pending := make([]*core.CatalogItem, 0, ps.batchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		results, err := ps.catalog.UpsertItems(ctx, payload.ForceReprocess, pending...)
		if err != nil {
			return fmt.Errorf("upsert items: %w", err)
		}
		for _, r := range results {
			switch r.Outcome {
			case storage.OutcomeCreated:
				state.counts.Created++
			case storage.OutcomeUpdated:
				state.counts.Updated++
			case storage.OutcomeSkipped:
				state.counts.Skipped++
			}
		}
		pending = pending[:0]
		return nil
	}

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was read before the damage
			if flushErr := flush(); flushErr != nil {
				ps.logger.Error("failed to flush before abort", "err", flushErr)
			}
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		state.counts.Parsed++

		item, err := schedule.ToItem(rec, now)
		if err != nil {
			state.counts.Failed++
			state.recordError("record %d (item %q): %v", rec.Index, rec.Key(), err)
			continue
		}
		if _, dup := present[item.Number]; dup {
			state.counts.Failed++
			state.recordError("record %d (item %d): duplicate item number", rec.Index, item.Number)
			continue
		}
		present[item.Number] = struct{}{}
		pending = append(pending, item)

		if len(pending) == ps.batchSize {
			if err := flush(); err != nil {
				return err
			}
			if state.stopRequested() {
				return ErrCancelled
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if payload.DeactivateMissing {
		n, err := ps.catalog.DeactivateMissing(ctx, present)
		if err != nil {
			return fmt.Errorf("deactivate missing items: %w", err)
		}
		state.counts.Deactivated += n
	}

	ps.logger.Info("schedule parsed",
		"parsed", state.counts.Parsed,
		"created", state.counts.Created,
		"updated", state.counts.Updated,
		"skipped", state.counts.Skipped,
		"failed", state.counts.Failed)
	return nil
}
