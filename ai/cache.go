package ai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/chatsession/core"
)

// DefaultCacheEntries bounds the number of cached vectors.
const DefaultCacheEntries = 10_000

// CachingEmbedder memoises vectors by the content id of their text.
// Repeated questions, common during ingestion and re-embedding, skip the
// embedding service.
type CachingEmbedder struct {
	embedder Embedder
	cache    *ristretto.Cache[uint64, []float32]
	logger   *slog.Logger
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps embedder with a cache of at most maxEntries vectors.
// A non-positive maxEntries uses DefaultCacheEntries.
func NewCachingEmbedder(embedder Embedder, maxEntries int64) (*CachingEmbedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []float32]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachingEmbedder{
		embedder: embedder,
		cache:    cache,
		logger:   slog.Default().With("component", "embedding-cache"),
	}, nil
}

func cacheKey(text string) uint64 {
	return uint64(core.IDFromContent(text))
}

// EmbedText implements Embedder.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, ok := c.cache.Get(key); ok {
		return slices.Clone(vector), nil
	}

	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(key, vector)
	c.cache.Wait()
	return vector, nil
}

// EmbedTexts implements Embedder. Only uncached texts are sent to the
// wrapped embedder, in a single batch.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vector, ok := c.cache.Get(cacheKey(text)); ok {
			vectors[i] = slices.Clone(vector)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}
	c.logger.Debug("embedding cache miss", "missing", len(missing), "total", len(texts))

	embedded, err := c.embedder.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmptyEmbedding, len(missing), len(embedded))
	}
	for j, i := range missingIdx {
		vectors[i] = embedded[j]
		c.store(cacheKey(missing[j]), embedded[j])
	}
	c.cache.Wait()
	return vectors, nil
}

func (c *CachingEmbedder) store(key uint64, vector []float32) {
	if len(vector) == 0 {
		return
	}
	c.cache.Set(key, slices.Clone(vector), 1)
}

// Close releases the cache.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}
