package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/slashtodo/internal/domain/event"
)

// Handler reacts to one committed event
type Handler func(ctx context.Context, e event.Event) error

// Bus is an in-process, synchronous subscriber registry. Publish runs the
// handlers for the event's kind, then the catch-all handlers, each in
// registration order, and stops at the first error.
type Bus struct {
	mu     sync.RWMutex
	byKind map[string][]Handler
	all    []Handler
}

func NewBus() *Bus {
	return &Bus{byKind: make(map[string][]Handler)}
}

// Subscribe registers handler for events of kind
func (b *Bus) Subscribe(kind string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKind[kind] = append(b.byKind[kind], handler)
}

// SubscribeAll registers handler for every event
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish implements aggregate.Dispatcher
func (b *Bus) Publish(ctx context.Context, e event.Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byKind[e.Kind()])+len(b.all))
	handlers = append(handlers, b.byKind[e.Kind()]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			return fmt.Errorf("subscriber failed on %s %s: %w", e.Kind(), e.Meta().ID, err)
		}
	}
	return nil
}
