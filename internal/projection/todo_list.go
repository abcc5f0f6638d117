package projection

import (
	"context"
	"log"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
)

// TodoList keeps one read model row per live todo
type TodoList struct {
	readStore store.ReadStoreInterface
}

func NewTodoList(readStore store.ReadStoreInterface) *TodoList {
	return &TodoList{readStore: readStore}
}

// RegisterSubscriptions subscribes the list to every todo event
func (p *TodoList) RegisterSubscriptions(bus *dispatch.Bus) {
	for _, kind := range []string{
		todo.EventTodoAdded,
		todo.EventTodoTicked,
		todo.EventTodoUnticked,
		todo.EventTodoClaimed,
		todo.EventTodoFreed,
		todo.EventTodoRemoved,
	} {
		bus.Subscribe(kind, p.HandleEvent)
	}
}

// HandleEvent applies one todo event. Events already reflected in the row
// (OriginalVersion below its Version) are ignored.
func (p *TodoList) HandleEvent(ctx context.Context, e event.Event) error {
	meta := e.Meta()

	switch ev := e.(type) {
	case todo.TodoAdded:
		if _, exists, err := p.readStore.GetTodo(ctx, meta.AggregateID); err != nil || exists {
			return err
		}
		return p.readStore.PutTodo(ctx, &readmodel.TodoReadModel{
			ID:                  meta.AggregateID,
			TeamID:              ev.TeamID,
			SlackConversationID: ev.SlackConversationID,
			ShortCode:           ev.ShortCode,
			Text:                ev.Text,
			CreatedAt:           meta.Timestamp,
			UpdatedAt:           meta.Timestamp,
			Version:             meta.OriginalVersion + 1,
		})

	case todo.TodoRemoved:
		return p.readStore.DeleteTodo(ctx, meta.AggregateID)
	}

	found, err := p.readStore.UpdateTodo(ctx, meta.AggregateID, func(m *readmodel.TodoReadModel) {
		if meta.OriginalVersion < m.Version {
			return
		}
		switch e.(type) {
		case todo.TodoTicked:
			m.IsTicked = true
		case todo.TodoUnticked:
			m.IsTicked = false
		case todo.TodoClaimed:
			m.ClaimedByUserID = meta.UserID
		case todo.TodoFreed:
			m.ClaimedByUserID = ""
		}
		m.UpdatedAt = meta.Timestamp
		m.Version = meta.OriginalVersion + 1
	})
	if err != nil {
		return err
	}
	if !found {
		log.Printf("[Projector] %s for unknown todo %s", e.Kind(), meta.AggregateID)
	}
	return nil
}
