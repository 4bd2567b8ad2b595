package mock

import (
	"context"
	"sync"

	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete echoes the prompt with the history size.
	CompleteFunc func(ctx context.Context, prompt string, history *core.HistoryContext) (string, error)

	mu          sync.Mutex
	callCount   int
	lastPrompt  string
	lastHistory *core.HistoryContext
}

var _ ai.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a mock completer with default behavior.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// WithCompleteFunc sets CompleteFunc and returns the mock for chaining.
func (m *MockCompleter) WithCompleteFunc(fn func(ctx context.Context, prompt string, history *core.HistoryContext) (string, error)) *MockCompleter {
	m.CompleteFunc = fn
	return m
}

// Complete implements ai.Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, history *core.HistoryContext) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPrompt = prompt
	m.lastHistory = history
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, history)
	}
	return "answer: " + prompt, nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the arguments of the most recent Complete call.
func (m *MockCompleter) LastCall() (string, *core.HistoryContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt, m.lastHistory
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastPrompt = ""
	m.lastHistory = nil
	m.CompleteFunc = nil
}
