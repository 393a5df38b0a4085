package async

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Outcome is how a successfully processed item was handled
type Outcome int

const (
	// OutcomeUpdated means the item was changed
	OutcomeUpdated Outcome = iota
	// OutcomeSkipped means the item already had the result and was left alone
	OutcomeSkipped
)

func (o Outcome) String() string {
	if o == OutcomeSkipped {
		return "skipped"
	}
	return "updated"
}

// JobHandler binds an operation type to the work done per item.
// Domain packages implement it; the orchestrator only sees ids and outcomes.
type JobHandler interface {
	// Name returns the operation type this handler serves (e.g. "editorial-context.update")
	Name() string

	// FetchBatch loads the records for one micro-batch in a single call.
	// An error fails every item of the batch.
	FetchBatch(ctx context.Context, itemIDs []string) (Batch, error)
}

// Batch processes the items of one fetched micro-batch
type Batch interface {
	// Process handles one item. Any error, including a missing record, fails only that item.
	// ctx carries the per-item timeout when one is configured.
	Process(ctx context.Context, itemID string) (Outcome, error)
}

// HandlerRegistry manages job handlers by operation type.
// Thread-safe for concurrent registration and lookup.
type HandlerRegistry struct {
	handlers map[string]JobHandler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]JobHandler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *HandlerRegistry) Register(handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler already registered for name: %s", name))
	}
	r.handlers[name] = handler
}

// Get retrieves the handler for an operation type. Returns nil if none is registered.
func (r *HandlerRegistry) Get(name string) JobHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Has checks if a handler is registered for a name.
func (r *HandlerRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[name]
	return exists
}

// Names returns all registered handler names, sorted.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
