package analyzer

import (
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between processed frames.
const DefaultMinInterval = time.Second

// ShouldProcess reports whether a frame at ts may be processed when the last
// processed frame was at last. A zero last means nothing was processed yet.
func ShouldProcess(ts, last time.Time, minInterval time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return ts.Sub(last) >= minInterval
}

// ThrottleGate admits at most one frame per minInterval, measured from the
// last frame that was actually sent to recognition.
type ThrottleGate struct {
	minInterval time.Duration

	mu              sync.Mutex
	lastProcessedAt time.Time
}

// NewThrottleGate creates a gate. Non-positive intervals use DefaultMinInterval.
func NewThrottleGate(minInterval time.Duration) *ThrottleGate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &ThrottleGate{minInterval: minInterval}
}

// Open reports whether a frame at ts would pass, without changing state.
func (g *ThrottleGate) Open(ts time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ShouldProcess(ts, g.lastProcessedAt, g.minInterval)
}

// MarkProcessed records ts as the last processed frame. Earlier timestamps
// are ignored so lastProcessedAt never moves backwards.
func (g *ThrottleGate) MarkProcessed(ts time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ts.After(g.lastProcessedAt) {
		g.lastProcessedAt = ts
	}
}

// Admit checks and records ts in one step.
func (g *ThrottleGate) Admit(ts time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !ShouldProcess(ts, g.lastProcessedAt, g.minInterval) {
		return false
	}
	if ts.After(g.lastProcessedAt) {
		g.lastProcessedAt = ts
	}
	return true
}

// LastProcessedAt returns the timestamp of the last admitted frame.
func (g *ThrottleGate) LastProcessedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastProcessedAt
}

// MinInterval returns the configured spacing.
func (g *ThrottleGate) MinInterval() time.Duration {
	return g.minInterval
}
