package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a single updating progress line to a writer.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	current  int
	every    int
	reported int
	start    time.Time
	started  bool
}

// NewProgressTracker reports after every `every` processed cases.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	if w == nil {
		w = io.Discard
	}
	if every <= 0 {
		every = 1
	}
	return &ProgressTracker{w: w, total: total, every: every}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.started = true
	p.current = 0
	p.reported = 0
}

// Update sets the processed count, capped at total.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.advance(current)
}

// Increment adds delta to the processed count.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.advance(p.current + delta)
}

// Finish reports the total and ends the line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.current = p.total
	p.report()
	fmt.Fprintln(p.w)
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return time.Since(p.start)
}

func (p *ProgressTracker) advance(n int) {
	p.current = min(n, p.total)
	if p.current-p.reported >= p.every {
		p.report()
		p.reported = p.current
	}
}

func (p *ProgressTracker) report() {
	pct := 0.0
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100
	}
	rate := 0.0
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.current) / secs
	}
	fmt.Fprintf(p.w, "\rCases: %d/%d (%.1f%%) - %.1f cases/s", p.current, p.total, pct, rate)
}
