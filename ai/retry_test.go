package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed vector per text and can fail the first N calls.
type stubEmbedder struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	batches   [][]string
}

func (s *stubEmbedder) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("temporary error")
	}
	return nil
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), texts...))
	s.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond)
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, max := range []int{0, -1} {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return nil
		}, max, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}

func TestRetryingEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewRetryingEmbedder(nil, 3, time.Millisecond)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		_, err := NewRetryingEmbedder(&stubEmbedder{}, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("retries single text", func(t *testing.T) {
		stub := &stubEmbedder{failFirst: 2}
		r, err := NewRetryingEmbedder(stub, 3, time.Millisecond)
		require.NoError(t, err)

		vector, err := r.EmbedText(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 1}, vector)
		assert.Equal(t, 3, stub.callCount())
	})

	t.Run("gives up on batch", func(t *testing.T) {
		stub := &stubEmbedder{failFirst: 5}
		r, err := NewRetryingEmbedder(stub, 2, time.Millisecond)
		require.NoError(t, err)

		_, err = r.EmbedTexts(ctx, []string{"a"})
		assert.Error(t, err)
		assert.Equal(t, 2, stub.callCount())
	})
}
