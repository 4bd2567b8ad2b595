package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// BatchProcessor re-embeds the questions of a batch of documents and writes
// them back.
type BatchProcessor struct {
	store          storage.Store
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.Store, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds each document's question, normalizes the vector and upserts
// the documents. Every upsert must succeed.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.ChatDocument) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Question
	}

	var vectors [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(docs), len(vectors))
	}

	updated := make([]*core.ChatDocument, len(docs))
	for i, doc := range docs {
		updated[i] = doc.Clone()
		updated[i].QuestionVector = core.Normalize(vectors[i])
	}

	results, err := bp.store.Upsert(ctx, updated...)
	if err != nil {
		return fmt.Errorf("failed to update documents: %w", err)
	}
	for _, r := range results {
		if !r.Succeeded() {
			return fmt.Errorf("%w: id %q: status %d: %s", ErrUpsertFailed, r.ID, r.Status, r.ErrorMessage)
		}
	}
	return nil
}
