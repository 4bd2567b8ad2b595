package ingestion

import "errors"

var (
	// ErrHistoryRequired is returned when a history service is not provided.
	ErrHistoryRequired = errors.New("history service required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch is returned when the embedder answers a batch
	// with the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrMalformedLine is returned by ReadDocuments for a line that is not a
	// JSON chat document.
	ErrMalformedLine = errors.New("malformed document line")
)
