package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	Done    int
	Total   int
	Elapsed time.Duration
}

// Percent returns Done as a percentage of Total. An empty run is complete.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Rate returns documents per second.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Done) / p.Elapsed.Seconds()
}

// ProgressTracker writes a single, rewritten status line for one schema.
type ProgressTracker struct {
	mu       sync.Mutex
	writer   io.Writer
	schema   string
	interval int
	now      func() time.Time

	started  time.Time
	running  bool
	progress Progress
	reported int
}

// NewProgressTracker reports on writer every interval documents.
// A nil writer discards output.
func NewProgressTracker(writer io.Writer, schema string, total, interval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:   writer,
		schema:   schema,
		interval: max(interval, 1),
		now:      time.Now,
		progress: Progress{Total: total},
	}
}

// Start resets the tracker and starts its clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = p.now()
	p.running = true
	p.progress.Done = 0
	p.reported = 0
}

// Update records done documents, capped at the total. Done never decreases,
// so batches finishing out of order are harmless. Calls before Start are
// ignored.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.progress.Done = max(p.progress.Done, min(done, p.progress.Total))
	if p.progress.Done-p.reported >= p.interval {
		p.writeLine()
		p.reported = p.progress.Done
	}
}

// Finish writes the final line and stops the clock.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.progress.Done = p.progress.Total
	p.writeLine()
	fmt.Fprintln(p.writer)
	p.progress.Elapsed = p.now().Sub(p.started)
	p.running = false
}

// Snapshot returns the current progress.
func (p *ProgressTracker) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.progress
	if p.running {
		snap.Elapsed = p.now().Sub(p.started)
	}
	return snap
}

// writeLine must be called with p.mu held.
func (p *ProgressTracker) writeLine() {
	snap := p.progress
	snap.Elapsed = p.now().Sub(p.started)
	fmt.Fprintf(p.writer, "\r[%s] re-embedded %d/%d documents (%.1f%%), %.1f/s",
		p.schema, snap.Done, snap.Total, snap.Percent(), snap.Rate())
}
