package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
)

// batchStep enriches a batch of documents in place before they are stored.
type batchStep interface {
	process(ctx context.Context, docs []*core.ChatDocument) error
}

// embeddingProcessor fills the question vectors of a batch.
type embeddingProcessor struct {
	embedder    ai.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

var _ batchStep = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder ai.Embedder, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if maxAttempts <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:    embedder,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.With("processor", "embeddings"),
	}, nil
}

// process embeds every question in one call. On failure no document is modified.
func (ep *embeddingProcessor) process(ctx context.Context, docs []*core.ChatDocument) error {
	ep.logger.Debug("generating embeddings for questions", "documents", len(docs))

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Question
	}

	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = ep.embedder.EmbedTexts(ctx, texts)
		return err
	}, ep.maxAttempts, ep.baseDelay)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(docs), len(vectors))
	}
	for i := range vectors {
		docs[i].QuestionVector = vectors[i]
	}
	return nil
}
