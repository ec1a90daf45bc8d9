package extractor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bdougie/mira/internal/frame"
)

// latestFrame is a single-slot mailbox. Publish never blocks and overwrites
// an unconsumed frame, so a slow consumer always sees the newest frame.
type latestFrame struct {
	mu    sync.Mutex
	frame *frame.Frame
	ready chan struct{}
	drops atomic.Uint64
}

func newLatestFrame() *latestFrame {
	return &latestFrame{ready: make(chan struct{}, 1)}
}

func (l *latestFrame) Publish(f *frame.Frame) {
	l.mu.Lock()
	if l.frame != nil {
		l.drops.Add(1)
	}
	l.frame = f
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a frame is available, ctx is done or done is closed.
// After done is closed a pending frame is still returned once; then Take
// returns nil, nil.
func (l *latestFrame) Take(ctx context.Context, done <-chan struct{}) (*frame.Frame, error) {
	for {
		if f := l.take(); f != nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.ready:
		case <-done:
			return l.take(), nil
		}
	}
}

func (l *latestFrame) take() *frame.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.frame
	l.frame = nil
	return f
}

func (l *latestFrame) Drops() uint64 { return l.drops.Load() }
