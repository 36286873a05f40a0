package destination

import (
	"context"
	"sync"

	"chronicle/internal/event"
)

// Result is one handler's outcome for one event.
type Result struct {
	Success   bool
	MessageID string
	Err       error
}

// Handler delivers an event to one kind of external sink. New sinks
// are added by registering a handler under a name referenced by
// routing rules; the router never changes.
type Handler interface {
	Name() string
	Deliver(ctx context.Context, evt event.Event, options map[string]interface{}) Result
}

// Registry maps destination names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

func stringOption(options map[string]interface{}, key, fallback string) string {
	if options == nil {
		return fallback
	}
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
