package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrCountMismatch is returned when the provider returns a different
	// number of vectors than texts sent.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrInvalidVector is returned for vectors that cannot be stored.
	ErrInvalidVector = errors.New("invalid embedding vector")
)
