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


package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/ingestion"
	"github.com/poiesic/schedex/storage"
)

// Runner executes one claimed job. cancelled reports whether cancellation
// was requested for the job; runners poll it between batches.
type Runner interface {
	Run(ctx context.Context, job *core.Job, cancelled func() bool) (*ingestion.Report, error)
}

// LogPage is one page of ingestion logs, newest first.
type LogPage struct {
	Logs    []*core.IngestionLog
	Total   int
	HasMore bool
}

// Queue accepts pipeline jobs and runs them on a bounded worker pool.
type Queue struct {
	jobs   storage.JobRepository
	logs   storage.IngestionLogRepository
	runner Runner

	workers      int
	retention    time.Duration
	pollInterval time.Duration
	observers    []Observer
	logger       *slog.Logger
	now          func() time.Time

	pool *ants.Pool
	wake chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
	running  sync.WaitGroup
}

// New creates a queue. Start must be called before queued jobs run.
func New(jobs storage.JobRepository, logs storage.IngestionLogRepository, runner Runner, opts ...Option) (*Queue, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if logs == nil {
		return nil, ErrLogRepositoryRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}

	q := &Queue{
		jobs:         jobs,
		logs:         logs,
		runner:       runner,
		workers:      DefaultWorkers,
		retention:    DefaultRetention,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
		now:          time.Now,
		wake:         make(chan struct{}, 1),
		inflight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "jobs")

	pool, err := ants.NewPool(q.workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	q.pool = pool
	return q, nil
}

// Start recovers jobs left over by a previous process and begins
// dispatching queued jobs.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrQueueStopped
	}
	if q.started {
		return nil
	}

	if err := q.recoverInterrupted(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.done = make(chan struct{})
	q.started = true
	go q.dispatch(runCtx)
	q.notify()
	return nil
}

// Stop halts dispatching, cancels running jobs and waits for them to record
// their final status.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	q.mu.Unlock()

	if started {
		q.cancel()
		<-q.done
	}
	q.running.Wait()
	q.pool.Release()
}

// Enqueue validates and stores a new job and returns it without waiting.
func (q *Queue) Enqueue(ctx context.Context, kind core.JobKind, payload core.JobPayload) (*core.Job, error) {
	payload.Source = strings.TrimSpace(payload.Source)
	job := &core.Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     core.JobQueued,
		Payload:    payload,
		EnqueuedAt: q.now().UTC(),
	}
	if err := core.ValidateJob(job); err != nil {
		return nil, err
	}
	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}
	q.logger.Info("job queued", "job", job.ID, "kind", job.Kind)
	q.publish(job, "")
	q.notify()
	return job, nil
}

// QueueXMLIngestion queues a parse-only job for source.
func (q *Queue) QueueXMLIngestion(ctx context.Context, source string, force bool) (string, error) {
	job, err := q.Enqueue(ctx, core.JobKindXMLIngest, core.JobPayload{Source: source, ForceReprocess: force})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// QueueEmbeddingGeneration queues an embed-only job. An empty items list
// targets every item lacking a current embedding.
func (q *Queue) QueueEmbeddingGeneration(ctx context.Context, items []core.ItemNumber, batchSize int, force bool) (string, error) {
	job, err := q.Enqueue(ctx, core.JobKindEmbedding, core.JobPayload{
		ItemNumbers: items,
		BatchSize:   batchSize,
		ForceEmbed:  force,
	})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// QueueFullPipeline queues a parse then embed job for source.
func (q *Queue) QueueFullPipeline(ctx context.Context, source string, force bool) (string, error) {
	job, err := q.Enqueue(ctx, core.JobKindFullPipeline, core.JobPayload{Source: source, ForceReprocess: force})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// Status returns the stored job.
func (q *Queue) Status(ctx context.Context, id string) (*core.Job, error) {
	return q.jobs.GetJob(ctx, id)
}

// Cancel removes a queued job or flags a running one for cancellation.
// The running job ends failed after its current batch.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	removed, err := q.jobs.DeleteJobs(ctx, func(j *core.Job) bool {
		return j.ID == id && j.Status == core.JobQueued
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		q.logger.Info("queued job removed", "job", id)
		return nil
	}

	_, err = q.jobs.UpdateJob(ctx, id, func(j *core.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, j.Status)
		}
		j.CancelRequested = true
		return nil
	})
	if err != nil {
		return err
	}
	q.logger.Info("cancellation requested", "job", id)
	return nil
}

// Stats counts jobs per status.
func (q *Queue) Stats(ctx context.Context) (*core.QueueStats, error) {
	return q.jobs.CountByStatus(ctx)
}

// Logs returns a page of ingestion logs. A zero limit selects the default
// page size.
func (q *Queue) Logs(ctx context.Context, limit, offset int) (*LogPage, error) {
	if limit == 0 {
		limit = DefaultLogPageSize
	}
	if limit < 1 || limit > MaxLogPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidPage, MaxLogPageSize, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidPage, offset)
	}

	logs, total, err := q.logs.ListLogs(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &LogPage{
		Logs:    logs,
		Total:   total,
		HasMore: offset+len(logs) < total,
	}, nil
}

// Clean deletes finished jobs older than the retention period and returns
// how many were removed. Queued and running jobs are never removed.
func (q *Queue) Clean(ctx context.Context) (int, error) {
	cutoff := q.now().Add(-q.retention)
	n, err := q.jobs.DeleteJobs(ctx, func(j *core.Job) bool {
		return j.Status.Terminal() && !j.FinishedAt.IsZero() && j.FinishedAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("cleaned finished jobs", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// recoverInterrupted fails jobs that were running when the previous process
// stopped, closing their logs.
func (q *Queue) recoverInterrupted(ctx context.Context) error {
	running, err := q.jobs.ListJobs(ctx, core.JobRunning)
	if err != nil {
		return fmt.Errorf("failed to list running jobs: %w", err)
	}
	for _, stale := range running {
		job, err := q.jobs.TransitionJob(ctx, stale.ID, core.JobRunning, core.JobFailed, func(j *core.Job) {
			j.Error = "interrupted"
		})
		if err != nil {
			q.logger.Warn("failed to recover interrupted job", "job", stale.ID, "err", err)
			continue
		}
		q.logger.Warn("job interrupted by restart", "job", job.ID)
		q.closeLog(ctx, job.LogID, "interrupted")
		q.publish(job, core.JobRunning)
	}
	return nil
}

func (q *Queue) closeLog(ctx context.Context, id, reason string) {
	if id == "" {
		return
	}
	log, err := q.logs.GetLog(ctx, id)
	if err != nil || log.Finalized() {
		return
	}
	log.Status = core.JobFailed
	log.FinishedAt = time.Time{}
	log.Errors = append(log.Errors, reason)
	if err := q.logs.FinalizeLog(ctx, log); err != nil && !errors.Is(err, storage.ErrAlreadyFinalized) {
		q.logger.Warn("failed to close ingestion log", "log", id, "err", err)
	}
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatch(ctx context.Context) {
	defer close(q.done)
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.dispatchPending(ctx)
	}
}

func (q *Queue) dispatchPending(ctx context.Context) {
	queued, err := q.jobs.ListJobs(ctx, core.JobQueued)
	if err != nil {
		q.logger.Error("failed to list queued jobs", "err", err)
		return
	}

	for _, job := range queued {
		if ctx.Err() != nil {
			return
		}
		id := job.ID

		q.mu.Lock()
		if _, ok := q.inflight[id]; ok {
			q.mu.Unlock()
			continue
		}
		q.inflight[id] = struct{}{}
		q.mu.Unlock()

		q.running.Add(1)
		err := q.pool.Submit(func() {
			defer q.running.Done()
			defer q.release(id)
			q.execute(ctx, id)
		})
		if err != nil {
			q.running.Done()
			q.release(id)
			if !errors.Is(err, ants.ErrPoolOverload) {
				q.logger.Error("failed to submit job", "job", id, "err", err)
			}
			// Pool is full; a finishing worker wakes the dispatcher.
			return
		}
	}
}

func (q *Queue) release(id string) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
	q.notify()
}

func (q *Queue) execute(ctx context.Context, id string) {
	job, err := q.jobs.TransitionJob(ctx, id, core.JobQueued, core.JobRunning, func(j *core.Job) {
		j.LogID = uuid.NewString()
	})
	if err != nil {
		// Removed or claimed elsewhere
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrConflict) {
			q.logger.Error("failed to claim job", "job", id, "err", err)
		}
		return
	}
	q.publish(job, core.JobQueued)
	logger := q.logger.With("job", id, "kind", job.Kind)
	logger.Info("job started")

	cancelled := func() bool {
		current, err := q.jobs.GetJob(context.WithoutCancel(ctx), id)
		return err == nil && current.CancelRequested
	}

	report, runErr := q.run(ctx, job, cancelled)

	final := core.JobCompleted
	message := ""
	if runErr != nil {
		final = core.JobFailed
		message = runErr.Error()
		if errors.Is(runErr, ingestion.ErrCancelled) {
			message = "cancelled"
		}
	}

	finished, err := q.jobs.TransitionJob(context.WithoutCancel(ctx), id, core.JobRunning, final, func(j *core.Job) {
		j.Error = message
		if report != nil {
			j.Summary = report.Counts
			if report.LogID != "" {
				j.LogID = report.LogID
			}
		}
	})
	if err != nil {
		logger.Error("failed to record job result", "err", err)
		return
	}
	q.publish(finished, core.JobRunning)

	if runErr != nil {
		logger.Warn("job failed", "err", message)
		return
	}
	logger.Info("job completed",
		"parsed", finished.Summary.Parsed,
		"created", finished.Summary.Created,
		"updated", finished.Summary.Updated,
		"embedded", finished.Summary.Embedded,
		"failed", finished.Summary.Failed)
}

// run invokes the runner, converting a panic into an error.
func (q *Queue) run(ctx context.Context, job *core.Job, cancelled func() bool) (report *ingestion.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", "job", job.ID, "panic", r, "stack", string(debug.Stack()))
			report = nil
			err = fmt.Errorf("%w: panic: %v", core.ErrInternal, r)
			q.closeLog(context.WithoutCancel(ctx), job.LogID, err.Error())
		}
	}()
	return q.runner.Run(ctx, job, cancelled)
}

func (q *Queue) publish(job *core.Job, from core.JobStatus) {
	for _, o := range q.observers {
		o.JobTransitioned(job, from)
	}
}
