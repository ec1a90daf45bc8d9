package analyzer

import (
	"sync"
	"time"
)

// DefaultFrameRateWindow is the number of timestamps kept for the moving average.
const DefaultFrameRateWindow = 8

// UnknownFPS is reported until the window holds two distinct timestamps.
const UnknownFPS = -1.0

// FrameRateTracker keeps a sliding window of recent frame timestamps and
// derives a moving-average frame rate from it.
type FrameRateTracker struct {
	mu   sync.Mutex
	ring []time.Time
	head int // index of the newest entry
	n    int
}

// NewFrameRateTracker creates a tracker holding at most window timestamps.
func NewFrameRateTracker(window int) *FrameRateTracker {
	if window < 2 {
		window = DefaultFrameRateWindow
	}
	return &FrameRateTracker{ring: make([]time.Time, window), head: -1}
}

// Record adds ts as the newest sample, evicting the oldest once full.
func (t *FrameRateTracker) Record(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.head = (t.head + 1) % len(t.ring)
	t.ring[t.head] = ts
	if t.n < len(t.ring) {
		t.n++
	}
}

// FPS returns frames per second averaged over the window, or UnknownFPS.
func (t *FrameRateTracker) FPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n < 2 {
		return UnknownFPS
	}
	newest := t.ring[t.head]
	oldest := t.ring[(t.head-t.n+1+len(t.ring))%len(t.ring)]
	spanMs := float64(newest.Sub(oldest)) / float64(time.Millisecond)
	if spanMs <= 0 {
		return UnknownFPS
	}
	return 1000.0 / (spanMs / float64(t.n))
}

// Timestamps returns the window, most recent first.
func (t *FrameRateTracker) Timestamps() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Time, t.n)
	for i := 0; i < t.n; i++ {
		out[i] = t.ring[(t.head-i+len(t.ring))%len(t.ring)]
	}
	return out
}

// Len returns how many timestamps are currently held.
func (t *FrameRateTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}
