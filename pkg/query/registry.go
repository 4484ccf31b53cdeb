package query

import (
	"fmt"
	"sync"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
)

// Registry holds compiled query definitions by name. It is owned by an
// Engine; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// add stores def. Adding the same definition twice is a no-op; a different
// definition under a taken name fails with apperrors.ErrDuplicateQuery.
// It reports whether def was newly added.
func (r *Registry) add(def *Definition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.defs[def.Name]; ok {
		if existing == def {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s", apperrors.ErrDuplicateQuery, def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return true, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownQuery, name)
	}
	return def, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Definitions returns every registered definition in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, len(r.order))
	for i, name := range r.order {
		out[i] = r.defs[name]
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
