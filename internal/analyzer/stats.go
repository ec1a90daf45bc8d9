package analyzer

import (
	"sync/atomic"
	"time"
)

type counters struct {
	received   atomic.Uint64
	gated      atomic.Uint64
	busyDrops  atomic.Uint64
	dispatched atomic.Uint64
	succeeded  atomic.Uint64
	empty      atomic.Uint64
	failed     atomic.Uint64
	stale      atomic.Uint64
	discarded  atomic.Uint64
}

// Stats is a point-in-time snapshot of a dispatcher.
type Stats struct {
	Analyzer        string    `json:"analyzer"`
	Received        uint64    `json:"received"`
	Gated           uint64    `json:"gated"`
	BusyDrops       uint64    `json:"busy_drops"`
	Dispatched      uint64    `json:"dispatched"`
	Succeeded       uint64    `json:"succeeded"`
	Empty           uint64    `json:"empty"`
	Failed          uint64    `json:"failed"`
	Stale           uint64    `json:"stale"`
	Discarded       uint64    `json:"discarded"`
	InFlight        int64     `json:"in_flight"`
	FPS             float64   `json:"fps"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

// Stats returns counters, the delivery frame rate and gate state.
func (d *Dispatcher[T]) Stats() Stats {
	return Stats{
		Analyzer:        d.name,
		Received:        d.counters.received.Load(),
		Gated:           d.counters.gated.Load(),
		BusyDrops:       d.counters.busyDrops.Load(),
		Dispatched:      d.counters.dispatched.Load(),
		Succeeded:       d.counters.succeeded.Load(),
		Empty:           d.counters.empty.Load(),
		Failed:          d.counters.failed.Load(),
		Stale:           d.counters.stale.Load(),
		Discarded:       d.counters.discarded.Load(),
		InFlight:        d.inFlight.Load(),
		FPS:             d.tracker.FPS(),
		LastProcessedAt: d.gate.LastProcessedAt(),
	}
}
