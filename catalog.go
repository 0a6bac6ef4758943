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


package schedex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/ai/openai"
	"github.com/poiesic/schedex/config"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/events"
	"github.com/poiesic/schedex/ingestion"
	"github.com/poiesic/schedex/jobs"
	"github.com/poiesic/schedex/metrics"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/search"
	"github.com/poiesic/schedex/storage"
	"github.com/poiesic/schedex/storage/badger"
	"github.com/poiesic/schedex/storage/qdrant"
)

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Health summarizes the catalog and the job queue.
type Health struct {
	Status            string
	SemanticAvailable bool
	Items             int
	ActiveItems       int
	EmbeddedItems     int
	Queue             core.QueueStats
	CheckedAt         time.Time
}

// Catalog is the entry point for every exposed operation. Validation and
// not-found errors pass through unchanged; anything else is logged and
// replaced by core.ErrInternal.
type Catalog struct {
	backend   *badger.Backend
	catalog   storage.CatalogRepository
	jobRepo   storage.JobRepository
	logRepo   storage.IngestionLogRepository
	provider  ai.AIProvider
	embedder  ai.Embedder
	index     *qdrant.Index
	publisher *events.Publisher
	exporter  *metrics.Exporter
	searcher  *search.Searcher
	pipeline  *ingestion.Pipeline
	queue     *jobs.Queue
	cfg       *config.Config
	root      *slog.Logger
	logger    *slog.Logger
	closers   []func() error
}

// Option configures a Catalog.
type Option func(*catalogOptions)

type catalogOptions struct {
	logger      *slog.Logger
	embedder    ai.Embedder
	provider    ai.AIProvider
	inMemory    bool
	jobOptions  []jobs.Option
	metricsConf metrics.Config
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *catalogOptions) {
		o.logger = logger
	}
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *catalogOptions) {
		o.embedder = embedder
	}
}

// WithProvider replaces the configured embedding provider. The catalog
// closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *catalogOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps all data in memory. DataDir is ignored.
func WithInMemoryStorage() Option {
	return func(o *catalogOptions) {
		o.inMemory = true
	}
}

// WithJobOptions passes extra options to the job queue.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(o *catalogOptions) {
		o.jobOptions = append(o.jobOptions, opts...)
	}
}

// WithMetricsConfig configures the Prometheus exporter.
func WithMetricsConfig(cfg metrics.Config) Option {
	return func(o *catalogOptions) {
		o.metricsConf = cfg
	}
}

// Open opens the catalog storage and wires the search and ingestion
// components described by cfg. The job queue does not run until Start.
func Open(cfg *config.Config, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &catalogOptions{
		logger:      slog.Default(),
		metricsConf: metrics.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	c := &Catalog{
		cfg:    cfg,
		root:   options.logger,
		logger: options.logger.With("component", "catalog"),
	}
	if err := c.open(options); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) open(options *catalogOptions) error {
	cfg := c.cfg
	logger := options.logger

	backend, err := badger.OpenBackendWithLogger(cfg.DataDir, options.inMemory, logger)
	if err != nil {
		return err
	}
	c.backend = backend
	c.closers = append(c.closers, backend.Close)

	catalogRepo := badger.NewCatalogRepository(backend)
	c.catalog = catalogRepo
	c.jobRepo = badger.NewJobRepository(backend)
	c.logRepo = badger.NewIngestionLogRepository(backend)

	switch {
	case options.embedder != nil:
		c.embedder = options.embedder
	case options.provider != nil:
		c.provider = options.provider
		c.embedder = options.provider.Embedder()
		c.closers = append(c.closers, options.provider.Close)
	case cfg.AI.Enabled:
		provider, err := openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return err
		}
		c.provider = provider
		c.embedder = provider.Embedder()
		c.closers = append(c.closers, provider.Close)
	default:
		logger.Info("embedding provider disabled, searches run in text mode")
	}

	var index storage.VectorIndex = catalogRepo
	var sink storage.VectorSink
	if cfg.Qdrant.Addr != "" {
		qi, err := qdrant.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			return err
		}
		c.index = qi
		c.closers = append(c.closers, qi.Close)
		if cfg.AI.Dimensions > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := qi.EnsureCollection(ctx, cfg.AI.Dimensions)
			cancel()
			if err != nil {
				return err
			}
		}
		index, sink = qi, qi
		logger.Info("using qdrant vector index", "addr", cfg.Qdrant.Addr, "collection", cfg.Qdrant.Collection)
	}

	c.exporter = metrics.NewExporter(options.metricsConf)

	c.searcher, err = search.NewSearcher(catalogRepo, c.embedder,
		search.WithLogger(logger),
		search.WithConfig(cfg.SearchConfig()),
		search.WithVectorIndex(index),
		search.WithMonitor(c.exporter),
	)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithEmbedConfig(cfg.EmbedConfig()),
	}
	if sink != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithVectorSink(sink))
	}
	c.pipeline, err = ingestion.NewPipeline(catalogRepo, c.logRepo, c.embedder, pipelineOpts...)
	if err != nil {
		return err
	}

	jobOpts := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithWorkers(cfg.Jobs.Workers),
		jobs.WithRetention(cfg.Jobs.Retention),
		jobs.WithObserver(c.exporter),
	}
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		c.publisher = pub
		c.closers = append(c.closers, func() error {
			pub.Close()
			return nil
		})
		jobOpts = append(jobOpts, jobs.WithObserver(pub))
	}
	jobOpts = append(jobOpts, options.jobOptions...)

	c.queue, err = jobs.New(c.jobRepo, c.logRepo, c.pipeline, jobOpts...)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func() error {
		c.queue.Stop()
		return nil
	})
	return nil
}

// Start recovers interrupted jobs and starts the job dispatcher.
func (c *Catalog) Start(ctx context.Context) error {
	return c.boundary("start", c.queue.Start(ctx))
}

// Close stops the queue and releases storage and connections in reverse
// order of creation.
func (c *Catalog) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Error("error during close", "err", err)
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// MetricsHandler serves the Prometheus metrics.
func (c *Catalog) MetricsHandler() http.Handler {
	return c.exporter.Handler()
}

func (c *Catalog) boundary(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	c.logger.Error("operation failed", "op", op, "err", err)
	return core.ErrInternal
}

// Search ranks items against req.
func (c *Catalog) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	resp, err := c.searcher.Search(ctx, &req)
	if err != nil {
		return nil, c.boundary("search", err)
	}
	return resp, nil
}

// SmartSearch ranks items and separates the exact match from related ones.
func (c *Catalog) SmartSearch(ctx context.Context, req search.SmartRequest) (*search.SmartResponse, error) {
	resp, err := c.searcher.SmartSearch(ctx, &req)
	if err != nil {
		return nil, c.boundary("smart search", err)
	}
	return resp, nil
}

// GetItem returns an item without its embedding vector.
func (c *Catalog) GetItem(ctx context.Context, number core.ItemNumber) (*core.CatalogItem, error) {
	if number == 0 {
		return nil, fmt.Errorf("%w: must be positive", core.ErrInvalidItemNumber)
	}
	item, err := c.catalog.GetItem(ctx, number)
	if err != nil {
		return nil, c.boundary("get item", err)
	}
	return item.Projection(), nil
}

func (c *Catalog) Health(ctx context.Context) (*Health, error) {
	counts, err := c.catalog.Counts(ctx)
	if err != nil {
		return nil, c.boundary("health", err)
	}
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return nil, c.boundary("health", err)
	}

	h := &Health{
		Status:            StatusOK,
		SemanticAvailable: c.searcher.SemanticAvailable(),
		Items:             counts.Total,
		ActiveItems:       counts.Active,
		EmbeddedItems:     counts.Embedded,
		Queue:             *stats,
		CheckedAt:         time.Now().UTC(),
	}
	if !h.SemanticAvailable {
		h.Status = StatusDegraded
	}
	return h, nil
}

// SearchFilters lists the filter values present in the catalog.
func (c *Catalog) SearchFilters(ctx context.Context) (*search.FilterOptions, error) {
	opts, err := c.searcher.FilterOptions(ctx)
	if err != nil {
		return nil, c.boundary("search filters", err)
	}
	return opts, nil
}

// QueueXMLIngestion queues a parse job for source and returns its id.
func (c *Catalog) QueueXMLIngestion(ctx context.Context, source string, force bool) (string, error) {
	id, err := c.queue.QueueXMLIngestion(ctx, source, force)
	return id, c.boundary("queue xml ingestion", err)
}

// QueueEmbeddingGeneration queues an embedding job. No items means every
// item lacking a vector.
func (c *Catalog) QueueEmbeddingGeneration(ctx context.Context, items []core.ItemNumber, batchSize int, force bool) (string, error) {
	id, err := c.queue.QueueEmbeddingGeneration(ctx, items, batchSize, force)
	return id, c.boundary("queue embedding generation", err)
}

func (c *Catalog) QueueFullPipeline(ctx context.Context, source string, force bool) (string, error) {
	id, err := c.queue.QueueFullPipeline(ctx, source, force)
	return id, c.boundary("queue full pipeline", err)
}

func (c *Catalog) JobStatus(ctx context.Context, id string) (*core.Job, error) {
	job, err := c.queue.Status(ctx, id)
	if err != nil {
		return nil, c.boundary("job status", err)
	}
	return job, nil
}

// CancelJob removes a queued job or stops a running one after its current
// batch.
func (c *Catalog) CancelJob(ctx context.Context, id string) error {
	return c.boundary("cancel job", c.queue.Cancel(ctx, id))
}

func (c *Catalog) QueueStats(ctx context.Context) (*core.QueueStats, error) {
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return nil, c.boundary("queue stats", err)
	}
	return stats, nil
}

// IngestionLogs returns a page of ingestion logs, most recent first.
func (c *Catalog) IngestionLogs(ctx context.Context, limit, offset int) (*jobs.LogPage, error) {
	page, err := c.queue.Logs(ctx, limit, offset)
	if err != nil {
		return nil, c.boundary("ingestion logs", err)
	}
	return page, nil
}

// CleanJobs removes finished jobs past the retention period.
func (c *Catalog) CleanJobs(ctx context.Context) (int, error) {
	n, err := c.queue.Clean(ctx)
	return n, c.boundary("clean jobs", err)
}

// Ingest runs a parse or full pipeline job in the calling goroutine,
// bypassing the queue. It stops when ctx is cancelled.
func (c *Catalog) Ingest(ctx context.Context, source string, force, embed bool) (*ingestion.Report, error) {
	kind := core.JobKindXMLIngest
	if embed {
		kind = core.JobKindFullPipeline
	}
	job := &core.Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     core.JobRunning,
		Payload:    core.JobPayload{Source: source, ForceReprocess: force},
		EnqueuedAt: time.Now().UTC(),
	}
	report, err := c.pipeline.Run(ctx, job, func() bool { return ctx.Err() != nil })
	switch {
	case err == nil:
	case errors.Is(err, ingestion.ErrInvalidSource), errors.Is(err, core.ErrUnavailable):
		return report, err
	default:
		return report, c.boundary("ingest", err)
	}
	return report, nil
}

// Embed embeds the items target selects in the calling goroutine, writing
// progress to w when it is not nil.
func (c *Catalog) Embed(ctx context.Context, target reembed.Target, w io.Writer) (*reembed.Result, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider disabled", core.ErrUnavailable)
	}
	r := reembed.NewReembedder(c.catalog, c.embedder, c.cfg.EmbedConfig(), w).WithLogger(c.root)
	if c.index != nil {
		r.WithVectorSink(c.index)
	}
	result, err := r.Run(ctx, target)
	if err != nil {
		return result, c.boundary("embed", err)
	}
	return result, nil
}
