package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultUpsertBatchSize is the number of parsed items written per transaction.
const DefaultUpsertBatchSize = 200

// Pipeline executes ingestion jobs: parse, embed and finalize.
// A Pipeline holds no per-run state and may run several jobs concurrently.
type Pipeline struct {
	catalog     storage.CatalogRepository
	logs        storage.IngestionLogRepository
	embedder    ai.Embedder
	sink        storage.VectorSink
	embedConfig *reembed.Config
	upsertBatch int
	now         func() time.Time
	tracer      trace.Tracer
	logger      *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	LogID  string
	Counts core.IngestionCounts
	Errors []string
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithVectorSink mirrors vectors written by the embed stage.
func WithVectorSink(sink storage.VectorSink) Option {
	return func(p *Pipeline) error {
		p.sink = sink
		return nil
	}
}

// WithEmbedConfig sets retry and dimension settings for the embed stage.
func WithEmbedConfig(cfg *reembed.Config) Option {
	return func(p *Pipeline) error {
		if cfg == nil {
			return errors.New("embed config cannot be nil")
		}
		p.embedConfig = cfg
		return nil
	}
}

// WithUpsertBatchSize sets how many parsed items are written per transaction.
func WithUpsertBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("upsert batch size must be positive, got %d", size)
		}
		p.upsertBatch = size
		return nil
	}
}

// WithClock replaces time.Now, used to decide whether an item has expired.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		p.now = now
		return nil
	}
}

// WithTracer sets the tracer for run and stage spans.
// Default is the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) error {
		p.tracer = tracer
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. embedder may be nil, in
// which case jobs that embed fail with ErrEmbedderUnavailable.
func NewPipeline(catalog storage.CatalogRepository, logs storage.IngestionLogRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if logs == nil {
		return nil, ErrLogRepositoryRequired
	}

	p := &Pipeline{
		catalog:     catalog,
		logs:        logs,
		embedder:    embedder,
		embedConfig: reembed.DefaultConfig(),
		upsertBatch: DefaultUpsertBatchSize,
		now:         time.Now,
		tracer:      otel.Tracer("github.com/poiesic/schedex/ingestion"),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) stages(kind core.JobKind) []stage {
	logger := p.logger.With("component", "ingestion")
	var stages []stage
	if kind.RunsParse() {
		stages = append(stages, &parseStage{
			catalog:   p.catalog,
			batchSize: p.upsertBatch,
			now:       p.now,
			logger:    logger.With("stage", "parse"),
		})
	}
	if kind.RunsEmbed() {
		stages = append(stages, &embedStage{
			catalog:  p.catalog,
			embedder: p.embedder,
			sink:     p.sink,
			config:   p.embedConfig,
			logger:   logger.With("stage", "embed"),
		})
	}
	return stages
}

// Run executes job. cancelled is polled between stages and between batches;
// once it reports true the run stops with ErrCancelled after its current batch.
//
// The ingestion log (job.LogID, or a fresh id) is created before the first
// stage and finalized once at the end. The returned error is the first fatal
// one; partial failures only show up in the report.
func (p *Pipeline) Run(ctx context.Context, job *core.Job, cancelled func() bool) (*Report, error) {
	if err := core.ValidateJob(job); err != nil {
		return nil, err
	}

	logID := job.LogID
	if logID == "" {
		logID = uuid.NewString()
	}

	ctx, span := p.tracer.Start(ctx, "ingestion.run", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
	))
	defer span.End()

	log := &core.IngestionLog{
		ID:        logID,
		JobID:     job.ID,
		Kind:      job.Kind,
		Source:    job.Payload.Source,
		StartedAt: p.now().UTC().Truncate(time.Microsecond),
		Status:    core.JobRunning,
	}
	if err := p.logs.CreateLog(ctx, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create log")
		return nil, fmt.Errorf("create ingestion log: %w", err)
	}

	state := &runState{cancelled: cancelled}
	runErr := p.runStages(ctx, job, state)

	log.Counts = state.counts
	log.Errors = state.errorList()
	log.Status = core.JobCompleted
	if runErr != nil {
		log.Status = core.JobFailed
		log.Errors = append(log.Errors, "fatal: "+runErr.Error())
	}
	log.FinishedAt = p.now().UTC().Truncate(time.Microsecond)

	// The log is closed even when the job's context is gone
	if err := p.logs.FinalizeLog(context.WithoutCancel(ctx), log); err != nil {
		p.logger.Error("failed to finalize ingestion log", "log", logID, "job", job.ID, "err", err)
		if runErr == nil {
			runErr = fmt.Errorf("finalize ingestion log: %w", err)
		}
	}

	span.SetAttributes(
		attribute.Int("ingestion.parsed", state.counts.Parsed),
		attribute.Int("ingestion.failed", state.counts.Failed),
		attribute.Int("ingestion.embedded", state.counts.Embedded),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	return &Report{LogID: logID, Counts: state.counts, Errors: log.Errors}, runErr
}

func (p *Pipeline) runStages(ctx context.Context, job *core.Job, state *runState) error {
	for _, st := range p.stages(job.Kind) {
		if state.stopRequested() {
			return ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		stageCtx, span := p.tracer.Start(ctx, "ingestion."+st.name())
		started := time.Now()
		err := st.run(stageCtx, job, state)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		p.logger.Debug("stage finished", "job", job.ID, "stage", st.name(), "elapsed", time.Since(started), "err", err)
		if err != nil {
			return fmt.Errorf("%s stage: %w", st.name(), err)
		}
	}
	return nil
}
