package analyzer

import (
	"sync"

	"github.com/bdougie/mira/internal/models"
)

// Listener receives the result of one analyzed frame.
type Listener func(models.Result)

// StringListener adapts a callback that only wants the rendered text.
func StringListener(fn func(string)) Listener {
	return func(r models.Result) { fn(r.String()) }
}

// ListenerRegistry is an ordered, append-only set of listeners.
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Register appends l. Registering the same function twice calls it twice.
func (r *ListenerRegistry) Register(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Len returns the number of registered listeners.
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// NotifyAll calls every listener in registration order on the calling goroutine.
func (r *ListenerRegistry) NotifyAll(res models.Result) {
	r.mu.RLock()
	snapshot := r.listeners[:len(r.listeners):len(r.listeners)]
	r.mu.RUnlock()
	for _, l := range snapshot {
		l(res)
	}
}
