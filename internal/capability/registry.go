// Package capability maps capability kinds to the callable functions that
// execute them. The set of kinds is closed; bindings are established when
// the registry is built, not resolved dynamically at call time.
package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// ToolFunc is a bound capability implementation. It takes the resolved
// query plus capability-specific options and returns a JSON-serializable
// result. Implementations must honor ctx cancellation.
type ToolFunc func(ctx context.Context, query string, opts map[string]any) (any, error)

// UnknownKindError indicates a lookup or registration against a kind that
// is not part of the closed capability set, or one with no binding.
type UnknownKindError struct {
	// Kind is the offending capability kind.
	Kind models.CapabilityKind
}

// Error implements the error interface.
func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown capability kind %q", string(e.Kind))
}

// Registry holds the kind-to-function bindings for one orchestration run.
type Registry struct {
	mu       sync.RWMutex
	bindings map[models.CapabilityKind]ToolFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[models.CapabilityKind]ToolFunc),
	}
}

// Register binds a function to a capability kind. Registering a kind
// outside the closed set is rejected; re-registering replaces the binding.
func (r *Registry) Register(kind models.CapabilityKind, fn ToolFunc) error {
	if !kind.Valid() {
		return &UnknownKindError{Kind: kind}
	}
	if fn == nil {
		return fmt.Errorf("nil function for capability kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[kind] = fn
	return nil
}

// Bind returns the function bound to the given kind.
func (r *Registry) Bind(kind models.CapabilityKind) (ToolFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.bindings[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}
	return fn, nil
}

// Has returns true if the kind has a binding.
func (r *Registry) Has(kind models.CapabilityKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order. Planners use this to
// restrict generated plans to capabilities the caller actually wired.
func (r *Registry) Kinds() []models.CapabilityKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.CapabilityKind, 0, len(r.bindings))
	for kind := range r.bindings {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Size returns the number of registered bindings.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
