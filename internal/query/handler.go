package query

import (
	"context"
	"log"
	"strings"

	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
)

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

// ListTodos returns the todos of a conversation ordered by short code
func (h *Handler) ListTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error) {
	todos, err := h.readStore.ListTodos(ctx, slackConversationID)
	if err != nil {
		log.Printf("[Query] Error listing todos for %s: %v", slackConversationID, err)
		return nil, err
	}
	if todos == nil {
		todos = []*readmodel.TodoReadModel{}
	}
	return todos, nil
}

// GetTodo returns a todo by short code within its conversation
func (h *Handler) GetTodo(ctx context.Context, slackConversationID, shortCode string) (*readmodel.TodoReadModel, bool, error) {
	id, found, err := h.readStore.GetLookup(ctx, readmodel.TodoLookupKey{
		SlackConversationID: slackConversationID,
		ShortCode:           strings.ToLower(strings.TrimSpace(shortCode)),
	})
	if err != nil || !found {
		return nil, false, err
	}
	return h.readStore.GetTodo(ctx, id)
}

// ListOpenTodos omits ticked todos
func (h *Handler) ListOpenTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error) {
	todos, err := h.ListTodos(ctx, slackConversationID)
	if err != nil {
		return nil, err
	}
	open := make([]*readmodel.TodoReadModel, 0, len(todos))
	for _, t := range todos {
		if !t.IsTicked {
			open = append(open, t)
		}
	}
	return open, nil
}
