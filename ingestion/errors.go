package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/schedex/core"
)

var (
	// ErrCatalogRequired is returned when a catalog repository is not provided.
	ErrCatalogRequired = errors.New("catalog repository required")

	// ErrLogRepositoryRequired is returned when an ingestion log repository is not provided.
	ErrLogRepositoryRequired = errors.New("ingestion log repository required")

	// ErrInvalidSource marks a schedule source that cannot be read at all.
	// It aborts the job.
	ErrInvalidSource = errors.New("invalid schedule source")

	// ErrEmbedderUnavailable is returned by the embed stage when no provider is configured.
	ErrEmbedderUnavailable = fmt.Errorf("%w: no embedding provider configured", core.ErrUnavailable)

	// ErrCancelled ends a run whose job was cancelled between batches.
	ErrCancelled = errors.New("job cancelled")
)
