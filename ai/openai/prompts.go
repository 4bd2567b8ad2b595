package openai

import (
	"strings"

	"github.com/poiesic/chatsession/core"
	"github.com/tmc/langchaingo/llms"
)

// buildMessages lays out a completion request: the system prompt, each
// history turn as a human question followed by the assistant response, then
// the new prompt.
func buildMessages(systemPrompt string, history *core.HistoryContext, prompt string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2+2*history.Len())
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	if history != nil {
		for _, doc := range history.ChatHistories {
			messages = append(messages,
				llms.TextParts(llms.ChatMessageTypeHuman, doc.Question),
				llms.TextParts(llms.ChatMessageTypeAI, doc.Content),
			)
		}
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
}
