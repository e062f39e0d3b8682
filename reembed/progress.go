package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single self-overwriting progress line while a
// rebuild runs. It is safe for concurrent use.
type ProgressTracker struct {
	mu           sync.Mutex
	w            io.Writer
	total        int
	done         int
	every        int
	lastReported int
	started      time.Time
	running      bool
}

// NewProgressTracker creates a tracker for total documents that reports
// whenever at least every documents completed since the last report.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	if every < 1 {
		every = 1
	}
	if w == nil {
		w = io.Discard
	}
	return &ProgressTracker{w: w, total: total, every: every}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = time.Now()
	p.running = true
	p.done = 0
	p.lastReported = 0
}

// Update sets the number of completed documents.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(done)
}

// Increment adds delta completed documents.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(p.done + delta)
}

func (p *ProgressTracker) advance(done int) {
	if !p.running {
		return
	}
	p.done = min(done, p.total)
	if p.done-p.lastReported >= p.every {
		p.report()
		p.lastReported = p.done
	}
}

// Finish reports the final line. A tracker that was stopped early by an
// error is finished with its real count rather than the total.
func (p *ProgressTracker) Finish(complete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	if complete {
		p.done = p.total
	}
	p.report()
	fmt.Fprintln(p.w)
	p.running = false
}

// Done returns the number of completed documents.
func (p *ProgressTracker) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}

// report must be called with mu held.
func (p *ProgressTracker) report() {
	fmt.Fprintf(p.w, "\rRebuilt %d/%d documents (%.1f%%) - %.1f docs/s",
		p.done, p.total, percent(p.done, p.total), rate(p.done, time.Since(p.started)))
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}

func rate(done int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(done) / elapsed.Seconds()
}
