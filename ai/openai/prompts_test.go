package openai

import (
	"testing"

	"github.com/poiesic/chatsession/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func text(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestBuildMessages(t *testing.T) {
	t.Run("history becomes alternating turns", func(t *testing.T) {
		history := core.NewHistoryContext(
			&core.ChatDocument{Question: "capital of France?", Content: "Paris"},
			&core.ChatDocument{Question: "and Germany?", Content: "Berlin"},
		)

		messages := buildMessages("be brief", history, "and Spain?")
		require.Len(t, messages, 6)

		roles := make([]llms.ChatMessageType, len(messages))
		for i, m := range messages {
			roles[i] = m.Role
		}
		assert.Equal(t, []llms.ChatMessageType{
			llms.ChatMessageTypeSystem,
			llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI,
			llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI,
			llms.ChatMessageTypeHuman,
		}, roles)
		assert.Equal(t, "be brief", text(t, messages[0]))
		assert.Equal(t, "Paris", text(t, messages[2]))
		assert.Equal(t, "and Spain?", text(t, messages[5]))
	})

	t.Run("nil history and blank prompt", func(t *testing.T) {
		messages := buildMessages("  ", nil, "hello")
		require.Len(t, messages, 1)
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[0].Role)
		assert.Equal(t, "hello", text(t, messages[0]))
	})
}
