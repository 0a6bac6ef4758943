// Package metrics exports search and job queue metrics in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/jobs"
	"github.com/poiesic/schedex/search"
)

const namespace = "schedex"

// Exporter records search and job metrics. It implements search.Monitor and
// jobs.Observer.
type Exporter struct {
	registry *prometheus.Registry

	// Search metrics
	searchRequests   *prometheus.CounterVec
	searchLatency    *prometheus.HistogramVec
	searchResults    prometheus.Histogram
	semanticFailures prometheus.Counter

	// Job metrics
	jobTransitions *prometheus.CounterVec
	jobsRunning    prometheus.Gauge
	jobDuration    *prometheus.HistogramVec
	itemsProcessed *prometheus.CounterVec

	mu      sync.Mutex
	running map[string]struct{}
}

var (
	_ search.Monitor = (*Exporter)(nil)
	_ jobs.Observer  = (*Exporter)(nil)
)

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for search latency histograms (in seconds)
	LatencyBuckets []float64

	// Buckets for job duration histograms (in seconds)
	JobBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		JobBuckets:     []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	}
}

// NewExporter creates an exporter and registers its collectors.
func NewExporter(cfg Config) *Exporter {
	defaults := DefaultConfig()
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = defaults.LatencyBuckets
	}
	if len(cfg.JobBuckets) == 0 {
		cfg.JobBuckets = defaults.JobBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry, running: make(map[string]struct{})}

	e.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of searches by requested and effective mode",
		},
		[]string{"requested_mode", "effective_mode"},
	)

	e.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Search processing time in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"effective_mode"},
	)

	e.searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results_total",
			Help:      "Filtered result count per search before pagination",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	e.semanticFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "semantic_unavailable_total",
			Help:      "Searches that fell back to text because semantic ranking failed",
		},
	)

	e.jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "transitions_total",
			Help:      "Job status changes by kind and new status",
		},
		[]string{"kind", "status"},
	)

	e.jobsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Number of jobs currently running",
		},
	)

	e.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job run time from start to terminal status",
			Buckets:   cfg.JobBuckets,
		},
		[]string{"kind", "status"},
	)

	e.itemsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "items_total",
			Help:      "Catalog items processed by finished jobs, by outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		e.searchRequests,
		e.searchLatency,
		e.searchResults,
		e.semanticFailures,
		e.jobTransitions,
		e.jobsRunning,
		e.jobDuration,
		e.itemsProcessed,
	)
	return e
}

func (e *Exporter) Start(_ string, _ search.Mode) {}

func (e *Exporter) AfterTextRanking(_ int) {}

func (e *Exporter) AfterSemanticRanking(_ int, err error) {
	if err != nil {
		e.semanticFailures.Inc()
	}
}

func (e *Exporter) Finish(requested, effective search.Mode, total int, elapsed time.Duration) {
	e.searchRequests.WithLabelValues(string(requested), string(effective)).Inc()
	e.searchLatency.WithLabelValues(string(effective)).Observe(elapsed.Seconds())
	e.searchResults.Observe(float64(total))
}

// JobTransitioned records a job status change.
func (e *Exporter) JobTransitioned(job *core.Job, _ core.JobStatus) {
	e.jobTransitions.WithLabelValues(string(job.Kind), string(job.Status)).Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	if job.Status == core.JobRunning {
		e.running[job.ID] = struct{}{}
		e.jobsRunning.Inc()
		return
	}
	// Jobs failed by startup recovery never ran in this process
	if _, ok := e.running[job.ID]; !ok || !job.Status.Terminal() {
		return
	}
	delete(e.running, job.ID)

	e.jobsRunning.Dec()
	if !job.StartedAt.IsZero() && !job.FinishedAt.IsZero() {
		e.jobDuration.WithLabelValues(string(job.Kind), string(job.Status)).Observe(job.FinishedAt.Sub(job.StartedAt).Seconds())
	}

	counts := job.Summary
	for outcome, n := range map[string]int{
		"parsed":      counts.Parsed,
		"created":     counts.Created,
		"updated":     counts.Updated,
		"skipped":     counts.Skipped,
		"failed":      counts.Failed,
		"embedded":    counts.Embedded,
		"deactivated": counts.Deactivated,
	} {
		if n > 0 {
			e.itemsProcessed.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
