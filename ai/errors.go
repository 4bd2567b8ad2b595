package ai

import "errors"

var (
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
	ErrEmbedderRequired   = errors.New("embedder is required")
	ErrEmptyEmbedding     = errors.New("embedder returned no vector")

	// ErrEmbeddingCount is returned when a batch yields a different number
	// of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count mismatch")

	// ErrDimensionChanged is returned when a model starts producing vectors
	// of another length than its first one.
	ErrDimensionChanged = errors.New("embedding dimension changed")
)
