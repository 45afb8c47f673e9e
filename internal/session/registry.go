package session

import (
	"context"
	"sync"
)

// Registry tracks detached background work per session: async verification
// and audio pre-generation. Starting a new session supersedes older ones,
// cancelling their still-running handles so abandoned sessions cannot pile
// up orphaned goroutines.
type Registry struct {
	mu      sync.Mutex
	handles map[string]map[int]context.CancelFunc
	nextID  int
	wg      sync.WaitGroup
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]map[int]context.CancelFunc)}
}

// Supersede cancels background work belonging to every session except
// current.
func (r *Registry) Supersede(current string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, cancels := range r.handles {
		if sessionID == current {
			continue
		}
		for _, cancel := range cancels {
			cancel()
		}
		delete(r.handles, sessionID)
	}
}

// Spawn runs fn on its own goroutine under a cancelable context registered
// to sessionID. The context is detached from the parent's cancellation and
// deadline, so completing or abandoning the session does not kill the
// task; only supersession does.
func (r *Registry) Spawn(parent context.Context, sessionID string, fn func(context.Context)) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.handles[sessionID] == nil {
		r.handles[sessionID] = make(map[int]context.CancelFunc)
	}
	r.handles[sessionID][id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer func() {
			r.mu.Lock()
			if cancels, ok := r.handles[sessionID]; ok {
				delete(cancels, id)
				if len(cancels) == 0 {
					delete(r.handles, sessionID)
				}
			}
			r.mu.Unlock()
			cancel()
			r.wg.Done()
		}()
		fn(ctx)
	}()
}

// Active reports how many background handles a session currently has.
func (r *Registry) Active(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles[sessionID])
}

// Wait blocks until all spawned work has returned. Intended for tests and
// orderly shutdown.
func (r *Registry) Wait() {
	r.wg.Wait()
}
