package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"tierwatch/internal/entity"
	"tierwatch/internal/event"
)

// Result describes what a handler did with one change.
type Result struct {
	// Paths lists every resolved path the change was applied to.
	Paths []string
	// Skipped marks a change that resolved to nothing actionable (entity gone,
	// no component present at the location).
	Skipped bool
	// Detail is a short human-readable note for logs and the ack summary.
	Detail string
}

// Handler reconciles one entity change.
type Handler interface {
	Handle(ctx context.Context, change event.EntityChange) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, change event.EntityChange) (Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, change event.EntityChange) (Result, error) {
	return f(ctx, change)
}

// Registry maps case-normalized entity kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds handler to kind. Kinds are matched case-insensitively and a
// kind can only be registered once.
func (r *Registry) Register(kind string, handler Handler) error {
	key := entity.NormalizeKind(kind)
	if key == "" {
		return errors.New("register handler: kind is empty")
	}
	if handler == nil {
		return fmt.Errorf("register handler %q: handler is nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("register handler %q: already registered", kind)
	}
	r.handlers[key] = handler
	return nil
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[entity.NormalizeKind(kind)]
	return h, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
