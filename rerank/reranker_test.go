package rerank

import (
	"testing"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, question, content string, score float64) storage.ScoredDocument {
	return storage.ScoredDocument{
		Document: &core.ChatDocument{ID: id, UserID: "u1", Question: question, Content: content},
		Score:    score,
	}
}

func TestTokenizeAndFilter(t *testing.T) {
	assert.Equal(t, []string{"capital", "france"}, tokenizeAndFilter("What is the capital of France?"))
	assert.Empty(t, tokenizeAndFilter("the a an"))
	assert.Empty(t, tokenizeAndFilter(""))
	assert.Equal(t, []string{"paris", "weather", "today"}, tokenizeAndFilter("Paris's weather (today)!"))
}

func TestCoverage(t *testing.T) {
	set := termSet("Paris is the capital of France")
	assert.Equal(t, 1.0, coverage([]string{"capital", "france"}, set))
	assert.Equal(t, 0.5, coverage([]string{"capital", "spain"}, set))
	assert.Equal(t, 0.0, coverage(nil, set))
}

func TestSemanticRerank(t *testing.T) {
	r := New()

	t.Run("lexical match outranks raw vector order", func(t *testing.T) {
		candidates := []storage.ScoredDocument{
			candidate("vector-only", "how do birds fly", "wings", 0.9),
			candidate("lexical", "capital of France?", "Paris", 0.8),
		}

		out := r.Rerank("capital of France", nil, candidates)
		require.Len(t, out, 2)
		assert.Equal(t, "lexical", out[0].Document.ID)
		require.NotNil(t, out[0].RerankScore)
		require.NotNil(t, out[1].RerankScore)
		assert.Greater(t, *out[0].RerankScore, *out[1].RerankScore)
	})

	t.Run("scores stay within bounds", func(t *testing.T) {
		out := r.Rerank("capital france", nil, []storage.ScoredDocument{
			candidate("perfect", "capital france", "capital france", 1.5),
			candidate("negative", "nothing", "nothing", -1),
		})
		require.Len(t, out, 2)
		for _, c := range out {
			assert.GreaterOrEqual(t, *c.RerankScore, 0.0)
			assert.LessOrEqual(t, *c.RerankScore, MaxScore)
		}
		assert.InDelta(t, MaxScore, *out[0].RerankScore, 1e-9)
	})

	t.Run("exact question with close vector clears the default threshold", func(t *testing.T) {
		out := r.Rerank("capital of France?", nil, []storage.ScoredDocument{
			candidate("d1", "capital of France?", "Paris", 0.95),
		})
		require.Len(t, out, 1)
		assert.GreaterOrEqual(t, *out[0].RerankScore, 3.5)
	})

	t.Run("stop word query falls back to vector", func(t *testing.T) {
		out := r.Rerank("the", nil, []storage.ScoredDocument{
			candidate("a", "x", "y", 0.5),
		})
		require.Len(t, out, 1)
		assert.InDelta(t, MaxScore*0.5*DefaultWeights.Vector, *out[0].RerankScore, 1e-9)
	})

	t.Run("skips nil documents", func(t *testing.T) {
		out := r.Rerank("q", nil, []storage.ScoredDocument{{Score: 1}})
		assert.Empty(t, out)
	})

	t.Run("uses configured fields", func(t *testing.T) {
		config := &storage.SemanticConfig{
			TitleField:    core.FieldContent,
			ContentFields: []string{core.FieldContent},
		}
		out := r.Rerank("paris", config, []storage.ScoredDocument{
			candidate("question-match", "paris", "nothing", 0.5),
			candidate("content-match", "nothing", "paris", 0.5),
		})
		require.Len(t, out, 2)
		assert.Equal(t, "content-match", out[0].Document.ID)
	})
}

func TestWithWeights(t *testing.T) {
	r := New(WithWeights(Weights{Vector: 1}))
	out := r.Rerank("capital", nil, []storage.ScoredDocument{
		candidate("a", "capital", "capital", 0.25),
	})
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, *out[0].RerankScore, 1e-9)
}
