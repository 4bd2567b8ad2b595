// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder, MockCompleter and MockProvider stand in for ai.Embedder,
// ai.Completer and ai.Provider so tests run without a model server.
//
//	embedder := mock.NewMockEmbedderWithDimension(3).
//	    WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return []float32{1, 0, 0}, nil
//	    })
//
//	count := embedder.CallCount()
//
// Without injected behavior MockEmbedder returns a deterministic unit vector
// derived from the text hash, and MockCompleter echoes the prompt.
package mock
