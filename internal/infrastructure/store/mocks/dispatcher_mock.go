package mocks

import (
	"context"
	"sync"

	"github.com/example/slashtodo/internal/domain/event"
)

// MockDispatcher records published events
type MockDispatcher struct {
	mu        sync.Mutex
	Published []event.Event

	// PublishErr is returned once FailAfter events have been published
	PublishErr error
	FailAfter  int
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Publish(ctx context.Context, e event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil && len(m.Published) >= m.FailAfter {
		return m.PublishErr
	}
	m.Published = append(m.Published, e)
	return nil
}

// Kinds returns the kinds of the published events in order
func (m *MockDispatcher) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]string, 0, len(m.Published))
	for _, e := range m.Published {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}
