package engine

import (
	"slices"
	"sync"
)

// Registry owns the engines of a process, keyed by scope id.
//
// Constructed once and passed by reference wherever engines are needed;
// deliberately not a package-level singleton. The constructor function
// decides how a new scope's engine is wired (log, state store, schemas,
// writer identity).
type Registry struct {
	mu        sync.RWMutex
	engines   map[string]*Engine
	construct func(scope string) *Engine
}

// NewRegistry creates a registry that builds engines with construct.
func NewRegistry(construct func(scope string) *Engine) *Registry {
	return &Registry{
		engines:   make(map[string]*Engine),
		construct: construct,
	}
}

// Get returns the engine for scope, if one exists.
func (r *Registry) Get(scope string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[scope]
	return e, ok
}

// GetOrCreate returns the engine for scope, constructing it on first
// use. Safe for concurrent callers; exactly one engine is built per
// scope.
func (r *Registry) GetOrCreate(scope string) *Engine {
	r.mu.RLock()
	if e, ok := r.engines[scope]; ok {
		r.mu.RUnlock()
		return e
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[scope]; ok {
		return e
	}
	e := r.construct(scope)
	r.engines[scope] = e
	return e
}

// Scopes returns the registered scope ids, sorted.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scopes := make([]string, 0, len(r.engines))
	for scope := range r.engines {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// StopAll stops every registered engine.
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.engines {
		e.Stop()
	}
}
