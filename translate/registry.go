package translate

import (
	"context"
	"sync"
)

// Registry tracks in-flight translation operations so a signal handler can
// tear them down cooperatively. It replaces process-global session state:
// the caller owns the registry, passes it in via Options.Registry, and
// calls CancelAll on shutdown.
type Registry struct {
	mu      sync.Mutex
	next    int
	cancels map[int]context.CancelFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cancels: make(map[int]context.CancelFunc)}
}

func (r *Registry) add(cancel context.CancelFunc) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.cancels[r.next] = cancel
	return r.next
}

func (r *Registry) remove(handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, handle)
}

// CancelAll cancels every registered operation. Each operation observes the
// cancellation at its next wave boundary and returns ctx.Err().
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for handle, cancel := range r.cancels {
		cancel()
		delete(r.cancels, handle)
	}
}

// Active returns how many operations are currently registered.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}
