// Package registry maps capability kinds to the workers that run them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/orca/pkg/models"
)

// ErrUnknownCapability is returned when no worker is registered for a kind.
var ErrUnknownCapability = errors.New("unknown agent type")

// Worker runs one unit of work against the shared codebase context.
// Implementations must treat unit and cb as read-only.
type Worker interface {
	Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error)
}

// WorkerFunc adapts an ordinary function to the Worker interface.
type WorkerFunc func(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error)

// Run calls f(ctx, unit, cb).
func (f WorkerFunc) Run(ctx context.Context, unit *models.WorkUnit, cb *models.CodebaseContext) (*models.WorkResult, error) {
	return f(ctx, unit, cb)
}

// Registry is a capability-keyed set of workers.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	workers map[models.Capability]Worker
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{workers: make(map[models.Capability]Worker)}
}

// Register binds a worker to a capability, replacing any previous binding.
func (r *Registry) Register(kind models.Capability, w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[kind] = w
}

// Unregister removes the binding for kind.
func (r *Registry) Unregister(kind models.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, kind)
}

// Lookup returns the worker for kind. The error wraps ErrUnknownCapability
// when nothing is registered.
func (r *Registry) Lookup(kind models.Capability) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, kind)
	}
	return w, nil
}

// Kinds returns the registered capabilities in sorted order.
func (r *Registry) Kinds() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]models.Capability, 0, len(r.workers))
	for k := range r.workers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
