package reembed

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestTracker(buf *bytes.Buffer, total, interval int) *ProgressTracker {
	p := NewProgressTracker(buf, "chathistory", total, interval)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	p.now = clock.now
	return p
}

func TestProgress(t *testing.T) {
	p := Progress{Done: 50, Total: 200, Elapsed: 10 * time.Second}
	assert.Equal(t, 25.0, p.Percent())
	assert.Equal(t, 5.0, p.Rate())

	empty := Progress{}
	assert.Equal(t, 100.0, empty.Percent())
	assert.Equal(t, 0.0, empty.Rate())
}

func TestProgressTracker(t *testing.T) {
	t.Run("reports each crossed interval", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 100, 25)
		tracker.Start()

		tracker.Update(10)
		assert.Empty(t, buf.String())

		tracker.Update(30)
		tracker.Update(40)
		tracker.Update(60)
		lines := strings.Split(strings.TrimPrefix(buf.String(), "\r"), "\r")
		assert.Len(t, lines, 2)
		assert.Contains(t, lines[0], "[chathistory] re-embedded 30/100 documents (30.0%)")
		assert.Contains(t, lines[1], "60/100")
	})

	t.Run("finish completes the line", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 40, 100)
		tracker.Start()
		tracker.Update(10)
		tracker.Finish()

		out := buf.String()
		assert.Contains(t, out, "40/40 documents (100.0%)")
		assert.True(t, strings.HasSuffix(out, "\n"))

		snap := tracker.Snapshot()
		assert.Equal(t, 40, snap.Done)
		assert.Positive(t, snap.Elapsed)

		// Elapsed stops with the run
		assert.Equal(t, snap.Elapsed, tracker.Snapshot().Elapsed)
	})

	t.Run("caps at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 10, 1)
		tracker.Start()
		tracker.Update(15)
		assert.Equal(t, 10, tracker.Snapshot().Done)
		assert.Contains(t, buf.String(), "10/10")
	})

	t.Run("never moves backwards", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 10, 100)
		tracker.Start()
		tracker.Update(6)
		tracker.Update(4)
		assert.Equal(t, 6, tracker.Snapshot().Done)
	})

	t.Run("ignores updates before start", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 10, 1)
		tracker.Update(5)
		tracker.Finish()
		assert.Empty(t, buf.String())
		assert.Equal(t, 0, tracker.Snapshot().Done)
	})

	t.Run("nil writer and zero interval", func(t *testing.T) {
		tracker := NewProgressTracker(nil, "chathistory", 3, 0)
		assert.Equal(t, 1, tracker.interval)
		tracker.Start()
		tracker.Update(3)
		tracker.Finish()
		assert.Equal(t, 3, tracker.Snapshot().Done)
	})

	t.Run("concurrent updates", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := newTestTracker(&buf, 1000, 100)
		tracker.Start()

		var wg sync.WaitGroup
		for i := 1; i <= 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				tracker.Update(n * 100)
			}(i)
		}
		wg.Wait()
		tracker.Finish()
		assert.Equal(t, 1000, tracker.Snapshot().Done)
	})
}
