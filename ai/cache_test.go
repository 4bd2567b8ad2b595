package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewCachingEmbedder(nil, 10)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("repeated text hits the cache", func(t *testing.T) {
		stub := &stubEmbedder{}
		c, err := NewCachingEmbedder(stub, 100)
		require.NoError(t, err)
		defer c.Close()

		first, err := c.EmbedText(ctx, "capital of France?")
		require.NoError(t, err)
		second, err := c.EmbedText(ctx, "capital of France?")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, stub.callCount())
	})

	t.Run("cached vectors are copies", func(t *testing.T) {
		stub := &stubEmbedder{}
		c, err := NewCachingEmbedder(stub, 100)
		require.NoError(t, err)
		defer c.Close()

		first, err := c.EmbedText(ctx, "abc")
		require.NoError(t, err)
		first[0] = 99

		second, err := c.EmbedText(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 1}, second)
	})

	t.Run("batch embeds only misses in order", func(t *testing.T) {
		stub := &stubEmbedder{}
		c, err := NewCachingEmbedder(stub, 100)
		require.NoError(t, err)
		defer c.Close()

		_, err = c.EmbedText(ctx, "bb")
		require.NoError(t, err)

		vectors, err := c.EmbedTexts(ctx, []string{"a", "bb", "ccc"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {3, 1}}, vectors)
		require.Len(t, stub.batches, 1)
		assert.Equal(t, []string{"a", "ccc"}, stub.batches[0])

		_, err = c.EmbedTexts(ctx, []string{"a", "ccc"})
		require.NoError(t, err)
		assert.Len(t, stub.batches, 1, "fully cached batch skips the embedder")
	})

	t.Run("errors are not cached", func(t *testing.T) {
		stub := &stubEmbedder{failFirst: 1}
		c, err := NewCachingEmbedder(stub, 100)
		require.NoError(t, err)
		defer c.Close()

		_, err = c.EmbedText(ctx, "x")
		require.Error(t, err)
		_, err = c.EmbedText(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, 2, stub.callCount())
	})
}
