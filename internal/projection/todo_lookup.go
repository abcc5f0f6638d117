package projection

import (
	"context"
	"errors"
	"log"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
)

// TodoLookup resolves what users type (conversation + short code) to a todo id
type TodoLookup struct {
	readStore store.ReadStoreInterface
}

func NewTodoLookup(readStore store.ReadStoreInterface) *TodoLookup {
	return &TodoLookup{readStore: readStore}
}

// RegisterSubscriptions subscribes the lookup to the events it indexes
func (l *TodoLookup) RegisterSubscriptions(bus *dispatch.Bus) {
	bus.Subscribe(todo.EventTodoAdded, l.onAdded)
	bus.Subscribe(todo.EventTodoRemoved, l.onRemoved)
}

// BySlackConversationIDAndShortCode returns the todo id, or false if none
func (l *TodoLookup) BySlackConversationIDAndShortCode(ctx context.Context, slackConversationID, shortCode string) (string, bool, error) {
	return l.readStore.GetLookup(ctx, readmodel.TodoLookupKey{
		SlackConversationID: slackConversationID,
		ShortCode:           shortCode,
	})
}

func (l *TodoLookup) onAdded(ctx context.Context, e event.Event) error {
	added, ok := e.(todo.TodoAdded)
	if !ok {
		return nil
	}
	err := l.readStore.PutLookup(ctx, lookupKey(added.Header), added.AggregateID)
	if errors.Is(err, store.ErrLookupTaken) {
		// The first todo keeps the code; the command side withdraws the loser.
		log.Printf("[Projector] Short code %s in %s already taken, %s not indexed",
			added.ShortCode, added.SlackConversationID, added.AggregateID)
		return nil
	}
	return err
}

// onRemoved only drops the key while it still points at the removed todo;
// a redelivered removal must not unmap a newer todo reusing the code.
func (l *TodoLookup) onRemoved(ctx context.Context, e event.Event) error {
	removed, ok := e.(todo.TodoRemoved)
	if !ok {
		return nil
	}
	key := lookupKey(removed.Header)
	current, found, err := l.readStore.GetLookup(ctx, key)
	if err != nil || !found || current != removed.AggregateID {
		return err
	}
	return l.readStore.DeleteLookup(ctx, key)
}

func lookupKey(h todo.Header) readmodel.TodoLookupKey {
	return readmodel.TodoLookupKey{
		SlackConversationID: h.SlackConversationID,
		ShortCode:           h.ShortCode,
	}
}
