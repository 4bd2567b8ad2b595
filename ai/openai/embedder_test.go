package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/chatsession/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient satisfies langchaingo's embeddings.Embedder.
type fakeClient struct {
	query     func(text string) ([]float32, error)
	documents func(texts []string) ([][]float32, error)
	calls     int
}

func (f *fakeClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	return f.query(text)
}

func (f *fakeClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	return f.documents(texts)
}

func fixed(dim int) []float32 {
	return make([]float32, dim)
}

func TestEmbedderEmbedText(t *testing.T) {
	ctx := context.Background()

	t.Run("fixes the dimension on first use", func(t *testing.T) {
		client := &fakeClient{query: func(text string) ([]float32, error) {
			if text == "long" {
				return fixed(4), nil
			}
			return fixed(3), nil
		}}
		e := wrapEmbedder(client, "test-model")
		assert.Equal(t, 0, e.Dimension())

		v, err := e.EmbedText(ctx, "q")
		require.NoError(t, err)
		assert.Len(t, v, 3)
		assert.Equal(t, 3, e.Dimension())

		_, err = e.EmbedText(ctx, "long")
		assert.ErrorIs(t, err, ai.ErrDimensionChanged)
	})

	t.Run("rejects empty vectors", func(t *testing.T) {
		client := &fakeClient{query: func(string) ([]float32, error) {
			return nil, nil
		}}
		_, err := wrapEmbedder(client, "m").EmbedText(ctx, "q")
		assert.ErrorIs(t, err, ai.ErrEmptyEmbedding)
	})

	t.Run("passes client errors through", func(t *testing.T) {
		boom := errors.New("503 service unavailable")
		client := &fakeClient{query: func(string) ([]float32, error) {
			return nil, boom
		}}
		_, err := wrapEmbedder(client, "m").EmbedText(ctx, "q")
		assert.ErrorIs(t, err, boom)
	})
}

func TestEmbedderEmbedTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch makes no request", func(t *testing.T) {
		client := &fakeClient{}
		vectors, err := wrapEmbedder(client, "m").EmbedTexts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("returns one vector per text", func(t *testing.T) {
		client := &fakeClient{documents: func(texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = fixed(2)
			}
			return out, nil
		}}
		vectors, err := wrapEmbedder(client, "m").EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vectors, 2)
	})

	t.Run("count mismatch", func(t *testing.T) {
		client := &fakeClient{documents: func([]string) ([][]float32, error) {
			return [][]float32{fixed(2)}, nil
		}}
		_, err := wrapEmbedder(client, "m").EmbedTexts(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, ai.ErrEmbeddingCount)
	})

	t.Run("mixed dimensions", func(t *testing.T) {
		client := &fakeClient{documents: func([]string) ([][]float32, error) {
			return [][]float32{fixed(2), fixed(3)}, nil
		}}
		_, err := wrapEmbedder(client, "m").EmbedTexts(ctx, []string{"a", "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrDimensionChanged)
		assert.Contains(t, err.Error(), "text 1")
	})
}

func TestNewProviderValidatesConfig(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingModel(""))
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}

func TestProviderClose(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithHost("http://localhost:11434"),
		ai.WithEmbeddingModel("nomic-embed-text"),
		ai.WithCompletionModel("llama3.2"),
	)
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.NotNil(t, p.Embedder())
	assert.NotNil(t, p.Completer())

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Close(), ErrProviderClosed)
}
