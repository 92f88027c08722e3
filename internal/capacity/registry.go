package capacity

import (
	"context"
	"fmt"
	"sync"
)

// Loader hydrates a matrix from storage on first access. The production
// implementation reads the event row, its sessions and the current
// checked-in count from Postgres.
type Loader interface {
	LoadMatrix(ctx context.Context, eventID int64) (*Matrix, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, eventID int64) (*Matrix, error)

func (f LoaderFunc) LoadMatrix(ctx context.Context, eventID int64) (*Matrix, error) {
	return f(ctx, eventID)
}

// Registry hands out the per-event Matrix aggregate, constructing it on
// first access and caching it for the event's lifetime. The map itself is
// lock-guarded; each matrix carries its own lock for counter mutation.
type Registry struct {
	mu       sync.Mutex
	matrices map[int64]*Matrix
	loader   Loader
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{
		matrices: make(map[int64]*Matrix),
		loader:   loader,
	}
}

// Get returns the matrix for the event, loading it if this is the first
// access. Concurrent first accesses load once; the registry lock is held
// across the load so a half-hydrated matrix is never visible.
func (r *Registry) Get(ctx context.Context, eventID int64) (*Matrix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.matrices[eventID]; ok {
		return m, nil
	}
	if r.loader == nil {
		return nil, fmt.Errorf("no capacity state for event %d", eventID)
	}

	m, err := r.loader.LoadMatrix(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load capacity matrix for event %d: %w", eventID, err)
	}
	r.matrices[eventID] = m
	return m, nil
}

// Put registers a freshly created event's matrix, replacing any cached one.
func (r *Registry) Put(m *Matrix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matrices[m.eventID] = m
}

// Evict tears down the cached matrix when an event ends.
func (r *Registry) Evict(eventID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matrices, eventID)
}
