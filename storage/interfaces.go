package storage

import (
	"context"

	"github.com/poiesic/schedex/core"
)

// UpsertOutcome records what an upsert did to a single item.
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota + 1
	OutcomeUpdated
	OutcomeSkipped
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

type UpsertResult struct {
	Number  core.ItemNumber
	Outcome UpsertOutcome
}

// Embedding is a vector computed for the item content with the given checksum.
type Embedding struct {
	Number   core.ItemNumber
	Checksum uint64
	Vector   []float32
}

// CatalogCounts is the grouped view used by health and filter listings.
type CatalogCounts struct {
	Total          int
	Active         int
	Embedded       int
	ByCategory     map[string]int
	ByProviderType map[core.ProviderType]int
}

// VectorIndex answers nearest-neighbour queries over item embeddings.
type VectorIndex interface {
	// FindSimilar returns items whose raw cosine similarity to vector is at
	// least minSimilarity, best first, up to limit matches. Items without an
	// embedding are never returned.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)
}

// VectorSink receives embeddings as they are persisted so an external index
// can mirror them.
type VectorSink interface {
	UpsertVectors(ctx context.Context, items ...*core.CatalogItem) error
}

// CatalogRepository stores catalog items keyed by item number.
// Implementations must serialize concurrent writes to the same item number.
type CatalogRepository interface {
	VectorIndex

	// UpsertItems creates or replaces items. Unless force is set, an existing
	// item whose stored checksum matches the incoming one is left untouched
	// and reported as skipped. A changed checksum clears the stored vector.
	UpsertItems(ctx context.Context, force bool, items ...*core.CatalogItem) ([]UpsertResult, error)

	// GetItem retrieves a single item.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, number core.ItemNumber) (*core.CatalogItem, error)

	// GetItems retrieves multiple items. Missing numbers are skipped.
	GetItems(ctx context.Context, numbers ...core.ItemNumber) ([]*core.CatalogItem, error)

	// ForEachItem calls fn for every stored item in item number order.
	// Iteration stops at the first error fn returns.
	ForEachItem(ctx context.Context, fn func(*core.CatalogItem) error) error

	// ItemsNeedingEmbedding selects embed candidates in item number order.
	// A non-empty subset selects exactly those stored items; otherwise force
	// selects every item and the default selects items lacking a vector.
	ItemsNeedingEmbedding(ctx context.Context, force bool, subset ...core.ItemNumber) ([]core.ItemNumber, error)

	// SetEmbeddings stores vectors for existing items and returns the items
	// it changed. An embedding whose checksum no longer matches the stored
	// item was computed from stale text and is dropped.
	// Returns ErrNotFound if any item doesn't exist.
	SetEmbeddings(ctx context.Context, embeddings ...Embedding) ([]*core.CatalogItem, error)

	// DeactivateMissing marks every active item not in present as inactive
	// and returns how many changed.
	DeactivateMissing(ctx context.Context, present map[core.ItemNumber]struct{}) (int, error)

	// Counts returns grouped item counts.
	Counts(ctx context.Context) (*CatalogCounts, error)

	Close() error
}

// JobRepository is the durable store behind the job queue.
type JobRepository interface {
	// CreateJob persists a new job.
	// Returns ErrDuplicateKey if the id is taken.
	CreateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by id.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// ListJobs returns jobs in the given statuses (all jobs when none are
	// given), oldest enqueue time first.
	ListJobs(ctx context.Context, statuses ...core.JobStatus) ([]*core.Job, error)

	// TransitionJob atomically moves a job from status from to status to and
	// applies mutate before saving. Returns ErrConflict if the stored status
	// is no longer from.
	TransitionJob(ctx context.Context, id string, from, to core.JobStatus, mutate func(*core.Job)) (*core.Job, error)

	// UpdateJob applies fn to the stored job and saves the result.
	UpdateJob(ctx context.Context, id string, fn func(*core.Job) error) (*core.Job, error)

	// DeleteJobs removes jobs for which remove returns true and reports how
	// many were removed.
	DeleteJobs(ctx context.Context, remove func(*core.Job) bool) (int, error)

	// CountByStatus counts jobs per status.
	CountByStatus(ctx context.Context) (*core.QueueStats, error)
}

// IngestionLogRepository stores the append-only pipeline audit trail.
type IngestionLogRepository interface {
	// CreateLog persists a new running log.
	CreateLog(ctx context.Context, log *core.IngestionLog) error

	// FinalizeLog stores the final counts and status of a log.
	// Returns ErrAlreadyFinalized if the log was finalized before.
	FinalizeLog(ctx context.Context, log *core.IngestionLog) error

	// GetLog retrieves a log by id.
	// Returns ErrNotFound if the log doesn't exist.
	GetLog(ctx context.Context, id string) (*core.IngestionLog, error)

	// ListLogs returns a page of logs, most recent first, and the total count.
	ListLogs(ctx context.Context, limit, offset int) ([]*core.IngestionLog, int, error)
}
