package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

// MockEventStore is a mock implementation of store.EventStore for testing.
// It keeps events as values, without encoding.
type MockEventStore struct {
	mu     sync.RWMutex
	events map[string][]event.Event

	// For tracking calls in tests
	GetCalls     []string
	SaveCalls    []SaveCall
	DeleteCalls  []string
	GetErr       error
	SaveErr      error
	DeleteErr    error
	SaveCallback func(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error
}

// SaveCall records parameters passed to Save
type SaveCall struct {
	AggregateID          string
	ExpectedStartVersion int
	Events               []event.Event
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		events: make(map[string][]event.Event),
	}
}

// GetByID returns the stored events for an aggregate
func (m *MockEventStore) GetByID(ctx context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, aggregateID)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return append([]event.Event(nil), m.events[aggregateID]...), nil
}

// Save appends events, failing with store.ErrConflict on an occupied slot
func (m *MockEventStore) Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, SaveCall{
		AggregateID:          aggregateID,
		ExpectedStartVersion: expectedStartVersion,
		Events:               append([]event.Event(nil), events...),
	})

	// Use callback if provided
	if m.SaveCallback != nil {
		return m.SaveCallback(ctx, aggregateID, expectedStartVersion, events)
	}

	// Return error if set
	if m.SaveErr != nil {
		return m.SaveErr
	}

	if expectedStartVersion < len(m.events[aggregateID]) {
		return fmt.Errorf("%w: %s version %d", store.ErrConflict, aggregateID, expectedStartVersion)
	}
	m.events[aggregateID] = append(m.events[aggregateID], events...)
	return nil
}

// Delete removes an aggregate's events
func (m *MockEventStore) Delete(ctx context.Context, aggregateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, aggregateID)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.events, aggregateID)
	return nil
}

// SetEvents sets events directly for testing
func (m *MockEventStore) SetEvents(aggregateID string, events []event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[aggregateID] = events
}

// Events returns what is stored for an aggregate
func (m *MockEventStore) Events(aggregateID string) []event.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]event.Event(nil), m.events[aggregateID]...)
}

// Reset clears all events and recorded calls
func (m *MockEventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string][]event.Event)
	m.GetCalls = nil
	m.SaveCalls = nil
	m.DeleteCalls = nil
	m.GetErr = nil
	m.SaveErr = nil
	m.DeleteErr = nil
	m.SaveCallback = nil
}
