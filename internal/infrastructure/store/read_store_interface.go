package store

import (
	"context"
	"errors"

	"github.com/example/slashtodo/internal/readmodel"
)

// ErrLookupTaken is returned by PutLookup when the key maps to another todo
var ErrLookupTaken = errors.New("lookup key maps to another todo")

// ReadStoreInterface defines the interface for read model storage
type ReadStoreInterface interface {
	// PutTodo inserts or replaces a todo read model
	PutTodo(ctx context.Context, m *readmodel.TodoReadModel) error

	// GetTodo retrieves a todo read model by id
	GetTodo(ctx context.Context, id string) (*readmodel.TodoReadModel, bool, error)

	// UpdateTodo modifies a todo read model in place; false if it does not exist
	UpdateTodo(ctx context.Context, id string, updateFn func(m *readmodel.TodoReadModel)) (bool, error)

	// DeleteTodo removes a todo read model
	DeleteTodo(ctx context.Context, id string) error

	// ListTodos returns the todos of a conversation ordered by short code
	ListTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error)

	// PutLookup maps a conversation short code to a todo id. It never
	// overwrites a mapping to a different todo (ErrLookupTaken).
	PutLookup(ctx context.Context, key readmodel.TodoLookupKey, todoID string) error

	// GetLookup resolves a conversation short code
	GetLookup(ctx context.Context, key readmodel.TodoLookupKey) (string, bool, error)

	// DeleteLookup removes a short code mapping
	DeleteLookup(ctx context.Context, key readmodel.TodoLookupKey) error

	// Reset drops every todo row and lookup key, before a rebuild
	Reset(ctx context.Context) error
}
