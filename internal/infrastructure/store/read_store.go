package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/slashtodo/internal/readmodel"
)

// ReadStore is an in-memory read model store
type ReadStore struct {
	mu      sync.RWMutex
	todos   map[string]*readmodel.TodoReadModel // todoID -> model
	lookups map[readmodel.TodoLookupKey]string  // key -> todoID
}

func NewReadStore() *ReadStore {
	return &ReadStore{
		todos:   make(map[string]*readmodel.TodoReadModel),
		lookups: make(map[readmodel.TodoLookupKey]string),
	}
}

// PutTodo stores a copy of the model
func (rs *ReadStore) PutTodo(ctx context.Context, m *readmodel.TodoReadModel) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cp := *m
	rs.todos[m.ID] = &cp
	return nil
}

// GetTodo returns a copy so callers cannot mutate stored state
func (rs *ReadStore) GetTodo(ctx context.Context, id string) (*readmodel.TodoReadModel, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	m, ok := rs.todos[id]
	if !ok {
		return nil, false, nil
	}
	cp := *m
	return &cp, true, nil
}

// UpdateTodo modifies a read model using an update function
func (rs *ReadStore) UpdateTodo(ctx context.Context, id string, updateFn func(m *readmodel.TodoReadModel)) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	m, ok := rs.todos[id]
	if !ok {
		return false, nil
	}
	updateFn(m)
	return true, nil
}

// DeleteTodo removes a read model
func (rs *ReadStore) DeleteTodo(ctx context.Context, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.todos, id)
	return nil
}

// ListTodos retrieves all todos of a conversation
func (rs *ReadStore) ListTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	var items []*readmodel.TodoReadModel
	for _, m := range rs.todos {
		if m.SlackConversationID == slackConversationID {
			cp := *m
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ShortCode < items[j].ShortCode })
	return items, nil
}

func (rs *ReadStore) PutLookup(ctx context.Context, key readmodel.TodoLookupKey, todoID string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if current, ok := rs.lookups[key]; ok && current != todoID {
		return fmt.Errorf("%w: %s/%s is %s", ErrLookupTaken, key.SlackConversationID, key.ShortCode, current)
	}
	rs.lookups[key] = todoID
	return nil
}

func (rs *ReadStore) GetLookup(ctx context.Context, key readmodel.TodoLookupKey) (string, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	id, ok := rs.lookups[key]
	return id, ok, nil
}

func (rs *ReadStore) DeleteLookup(ctx context.Context, key readmodel.TodoLookupKey) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.lookups, key)
	return nil
}

func (rs *ReadStore) Reset(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.todos = make(map[string]*readmodel.TodoReadModel)
	rs.lookups = make(map[readmodel.TodoLookupKey]string)
	return nil
}
