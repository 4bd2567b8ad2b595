package session

import "errors"

var (
	// ErrHistoryRequired is returned when a history service is not provided.
	ErrHistoryRequired = errors.New("history service required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrEmptyQuestion is returned when the question text is blank.
	ErrEmptyQuestion = errors.New("question is required")

	// ErrUserRequired is returned when the question has no user.
	ErrUserRequired = errors.New("user id is required")
)
