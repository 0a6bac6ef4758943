package core

import (
	"fmt"
	"time"
)

// JobKind selects which pipeline stages a job runs.
type JobKind string

const (
	JobKindXMLIngest    JobKind = "xml-ingest"
	JobKindEmbedding    JobKind = "embedding-generation"
	JobKindFullPipeline JobKind = "full-pipeline"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobKindXMLIngest, JobKindEmbedding, JobKindFullPipeline:
		return true
	}
	return false
}

// RunsParse reports whether jobs of this kind read a schedule source.
func (k JobKind) RunsParse() bool {
	return k == JobKindXMLIngest || k == JobKindFullPipeline
}

// RunsEmbed reports whether jobs of this kind generate embeddings.
func (k JobKind) RunsEmbed() bool {
	return k == JobKindEmbedding || k == JobKindFullPipeline
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{JobQueued, JobRunning, JobCompleted, JobFailed}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job may move from s to next.
// Terminal statuses have no outgoing transitions.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	}
	return false
}

const (
	DefaultEmbedBatchSize = 50
	MaxEmbedBatchSize     = 100
)

type JobPayload struct {
	Source            string       // schedule source path, parse stages only
	ForceReprocess    bool         // rewrite items even when their checksum is unchanged
	ForceEmbed        bool         // re-embed items that already have a vector
	ItemNumbers       []ItemNumber // optional embed target subset
	BatchSize         int
	DeactivateMissing bool
}

// EffectiveBatchSize returns the embed batch size with the default applied.
func (p *JobPayload) EffectiveBatchSize() int {
	if p.BatchSize <= 0 {
		return DefaultEmbedBatchSize
	}
	return p.BatchSize
}

type Job struct {
	ID              string
	Kind            JobKind
	Status          JobStatus
	Payload         JobPayload
	EnqueuedAt      time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
	CancelRequested bool
	LogID           string
	Summary         IngestionCounts
	Error           string
}

// Transition moves the job to next, stamping the matching timestamp.
func (j *Job) Transition(next JobStatus, at time.Time) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	switch next {
	case JobRunning:
		j.StartedAt = at
	case JobCompleted, JobFailed:
		j.FinishedAt = at
	}
	return nil
}

// QueueStats counts jobs per status.
type QueueStats struct {
	Queued    int
	Running   int
	Completed int
	Failed    int
	Total     int
}

type IngestionCounts struct {
	Parsed      int
	Created     int
	Updated     int
	Skipped     int
	Failed      int
	Embedded    int
	Deactivated int
}

// Add accumulates other into c.
func (c *IngestionCounts) Add(other IngestionCounts) {
	c.Parsed += other.Parsed
	c.Created += other.Created
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.Embedded += other.Embedded
	c.Deactivated += other.Deactivated
}

// IngestionLog is the audit record of one pipeline run. It is created when
// the run starts and finalized exactly once when it ends.
type IngestionLog struct {
	ID         string
	JobID      string
	Kind       JobKind
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     IngestionCounts
	Errors     []string
	Status     JobStatus // running until finalized
}

func (l *IngestionLog) Finalized() bool {
	return l.Status.Terminal()
}
