package mocks

import (
	"context"

	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
)

// MockReadStore is an in-memory read store whose every call can be made to fail
type MockReadStore struct {
	*store.ReadStore

	// Err, when set, is returned by every method
	Err error
}

// NewMockReadStore creates a new MockReadStore
func NewMockReadStore() *MockReadStore {
	return &MockReadStore{ReadStore: store.NewReadStore()}
}

func (m *MockReadStore) PutTodo(ctx context.Context, rm *readmodel.TodoReadModel) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.PutTodo(ctx, rm)
}

func (m *MockReadStore) GetTodo(ctx context.Context, id string) (*readmodel.TodoReadModel, bool, error) {
	if m.Err != nil {
		return nil, false, m.Err
	}
	return m.ReadStore.GetTodo(ctx, id)
}

func (m *MockReadStore) UpdateTodo(ctx context.Context, id string, updateFn func(*readmodel.TodoReadModel)) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.ReadStore.UpdateTodo(ctx, id, updateFn)
}

func (m *MockReadStore) DeleteTodo(ctx context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.DeleteTodo(ctx, id)
}

func (m *MockReadStore) ListTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ReadStore.ListTodos(ctx, slackConversationID)
}

func (m *MockReadStore) PutLookup(ctx context.Context, key readmodel.TodoLookupKey, todoID string) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.PutLookup(ctx, key, todoID)
}

func (m *MockReadStore) GetLookup(ctx context.Context, key readmodel.TodoLookupKey) (string, bool, error) {
	if m.Err != nil {
		return "", false, m.Err
	}
	return m.ReadStore.GetLookup(ctx, key)
}

func (m *MockReadStore) DeleteLookup(ctx context.Context, key readmodel.TodoLookupKey) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.DeleteLookup(ctx, key)
}

func (m *MockReadStore) Reset(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	return m.ReadStore.Reset(ctx)
}
