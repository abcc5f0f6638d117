package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/infrastructure/store/mocks"
	"github.com/example/slashtodo/internal/projection"
	"github.com/example/slashtodo/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingStore lets another writer append right before the first Save
type racingStore struct {
	*store.MemoryEventStore
	once sync.Once
	race func(ctx context.Context)
}

func (s *racingStore) Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error {
	if s.race != nil {
		s.once.Do(func() { s.race(ctx) })
	}
	return s.MemoryEventStore.Save(ctx, aggregateID, expectedStartVersion, events)
}

type fixture struct {
	handler   *Handler
	readStore *mocks.MockReadStore
	memory    *store.MemoryEventStore
	bus       *dispatch.Bus
}

func newFixture(eventStore store.EventStore) *fixture {
	readStore := mocks.NewMockReadStore()
	bus := dispatch.NewBus()
	lookup := projection.NewTodoLookup(readStore)
	lookup.RegisterSubscriptions(bus)
	projection.NewTodoList(readStore).RegisterSubscriptions(bus)

	return &fixture{
		handler:   NewHandler(todo.NewRepository(eventStore, bus), lookup, readStore),
		readStore: readStore,
		bus:       bus,
	}
}

func newTestHandler() *fixture {
	memory := store.NewMemoryEventStore(todo.Codec{})
	f := newFixture(memory)
	f.memory = memory
	return f
}

func target(userID string) Target {
	return Target{TeamID: "T1", UserID: userID, SlackConversationID: "C1", ShortCode: "abc"}
}

func (f *fixture) add(t *testing.T) *todo.Todo {
	t.Helper()
	td, err := f.handler.AddTodo(context.Background(), AddTodo{
		TeamID: "T1", UserID: "U1", SlackConversationID: "C1", ShortCode: "abc", Text: "write docs",
	})
	require.NoError(t, err)
	return td
}

// ============================================
// AddTodo Tests
// ============================================

func TestHandler_AddTodo_Success(t *testing.T) {
	f := newTestHandler()

	td, err := f.handler.AddTodo(context.Background(), AddTodo{
		TeamID: "T1", UserID: "U1", SlackConversationID: "C1", ShortCode: "  ABC ", Text: " write docs ",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, td.ID())
	assert.Equal(t, "abc", td.ShortCode)
	assert.Equal(t, "write docs", td.Text)
	assert.False(t, td.HasUncommittedEvents())

	m, found, err := f.readStore.GetTodo(context.Background(), td.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", m.ShortCode)
}

func TestHandler_AddTodo_ShortCodeTaken(t *testing.T) {
	f := newTestHandler()
	f.add(t)

	_, err := f.handler.AddTodo(context.Background(), AddTodo{
		UserID: "U2", SlackConversationID: "C1", ShortCode: "ABC", Text: "again",
	})

	assert.ErrorIs(t, err, ErrShortCodeTaken)
}

func TestHandler_AddTodo_ConcurrentAddOfSameCode(t *testing.T) {
	memory := store.NewMemoryEventStore(todo.Codec{})
	racing := &racingStore{MemoryEventStore: memory}
	f := newFixture(racing)
	ctx := context.Background()

	var winner *todo.Todo
	racing.race = func(ctx context.Context) {
		td, err := todo.Add("todo-winner", "first", "C1", "abc", todo.Context{UserID: "U2"})
		require.NoError(t, err)
		require.NoError(t, todo.NewRepository(memory, f.bus).Save(ctx, td))
		winner = td
	}

	_, err := f.handler.AddTodo(ctx, AddTodo{
		UserID: "U1", SlackConversationID: "C1", ShortCode: "abc", Text: "second",
	})

	assert.ErrorIs(t, err, ErrShortCodeTaken)
	require.NotNil(t, winner)

	id, found, err := f.readStore.GetLookup(ctx, readmodel.TodoLookupKey{SlackConversationID: "C1", ShortCode: "abc"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "todo-winner", id)

	todos, err := f.readStore.ListTodos(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "first", todos[0].Text)

	td, err := f.handler.TickTodo(ctx, TickTodo{Target: Target{UserID: "U2", SlackConversationID: "C1", ShortCode: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, "todo-winner", td.ID())
}

func TestHandler_AddTodo_SameCodeOtherConversation(t *testing.T) {
	f := newTestHandler()
	f.add(t)

	_, err := f.handler.AddTodo(context.Background(), AddTodo{
		UserID: "U1", SlackConversationID: "C2", ShortCode: "abc", Text: "elsewhere",
	})

	assert.NoError(t, err)
}

func TestHandler_AddTodo_CodeFreeAfterRemove(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()
	first := f.add(t)
	_, err := f.handler.RemoveTodo(ctx, RemoveTodo{Target: target("U1")})
	require.NoError(t, err)

	second := f.add(t)

	assert.NotEqual(t, first.ID(), second.ID())
}

func TestHandler_AddTodo_Validation(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()

	_, err := f.handler.AddTodo(ctx, AddTodo{UserID: "U1", SlackConversationID: "C1", ShortCode: " ", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidShortCode)

	_, err = f.handler.AddTodo(ctx, AddTodo{UserID: "U1", SlackConversationID: "C1", ShortCode: "a", Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = f.handler.AddTodo(ctx, AddTodo{SlackConversationID: "C1", ShortCode: "a", Text: "x"})
	assert.ErrorIs(t, err, todo.ErrMissingUser)
}

// ============================================
// State Change Tests
// ============================================

func TestHandler_TickAndUntick(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()
	f.add(t)

	td, err := f.handler.TickTodo(ctx, TickTodo{Target: target("U2")})
	require.NoError(t, err)
	assert.True(t, td.IsTicked)

	td, err = f.handler.UntickTodo(ctx, UntickTodo{Target: target("U2")})
	require.NoError(t, err)
	assert.False(t, td.IsTicked)
	assert.Equal(t, 3, td.Version())
}

func TestHandler_ClaimOwnership(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()
	f.add(t)

	_, err := f.handler.ClaimTodo(ctx, ClaimTodo{Target: target("U1")})
	require.NoError(t, err)

	_, err = f.handler.ClaimTodo(ctx, ClaimTodo{Target: target("U2")})
	var claimed *todo.ClaimedBySomeoneElseError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, "U1", claimed.ClaimedByUserID)

	_, err = f.handler.FreeTodo(ctx, FreeTodo{Target: target("U2")})
	assert.ErrorIs(t, err, todo.ErrClaimedBySomeoneElse)

	td, err := f.handler.ClaimTodo(ctx, ClaimTodo{Target: target("U2"), Force: true})
	require.NoError(t, err)
	assert.Equal(t, "U2", td.ClaimedByUserID)

	m, _, err := f.readStore.GetTodo(ctx, td.ID())
	require.NoError(t, err)
	assert.Equal(t, "U2", m.ClaimedByUserID)

	td, err = f.handler.FreeTodo(ctx, FreeTodo{Target: target("U2")})
	require.NoError(t, err)
	assert.False(t, td.IsClaimed())
}

func TestHandler_RemoveClaimedBySomeoneElse(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()
	f.add(t)
	_, err := f.handler.ClaimTodo(ctx, ClaimTodo{Target: target("U1")})
	require.NoError(t, err)

	_, err = f.handler.RemoveTodo(ctx, RemoveTodo{Target: target("U2")})
	assert.ErrorIs(t, err, todo.ErrClaimedBySomeoneElse)

	td, err := f.handler.RemoveTodo(ctx, RemoveTodo{Target: target("U2"), Force: true})
	require.NoError(t, err)
	assert.True(t, td.IsRemoved)

	_, err = f.handler.TickTodo(ctx, TickTodo{Target: target("U1")})
	assert.ErrorIs(t, err, ErrTodoNotFound)
}

func TestHandler_UnknownShortCode(t *testing.T) {
	f := newTestHandler()

	_, err := f.handler.TickTodo(context.Background(), TickTodo{Target: target("U1")})

	assert.ErrorIs(t, err, ErrTodoNotFound)
}

func TestHandler_LookupError(t *testing.T) {
	f := newTestHandler()
	f.readStore.Err = errors.New("db down")

	_, err := f.handler.TickTodo(context.Background(), TickTodo{Target: target("U1")})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTodoNotFound)
}

// ============================================
// Conflict Retry Tests
// ============================================

func TestHandler_RetriesAfterConflict(t *testing.T) {
	memory := store.NewMemoryEventStore(todo.Codec{})
	racing := &racingStore{MemoryEventStore: memory}
	f := newFixture(racing)
	ctx := context.Background()
	added := f.add(t)

	racing.race = func(ctx context.Context) {
		other := todo.NewRepository(memory, f.bus)
		td, _, err := other.GetByID(ctx, added.ID())
		require.NoError(t, err)
		td.SetContext(todo.Context{UserID: "U9"})
		require.NoError(t, td.Claim(false))
		require.NoError(t, other.Save(ctx, td))
	}

	td, err := f.handler.TickTodo(ctx, TickTodo{Target: target("U1")})

	require.NoError(t, err)
	assert.True(t, td.IsTicked)
	assert.Equal(t, "U9", td.ClaimedByUserID)
	assert.Equal(t, 3, td.Version())
}

func TestHandler_ConflictThenOwnershipIsNotRetried(t *testing.T) {
	memory := store.NewMemoryEventStore(todo.Codec{})
	racing := &racingStore{MemoryEventStore: memory}
	f := newFixture(racing)
	ctx := context.Background()
	added := f.add(t)

	racing.race = func(ctx context.Context) {
		other := todo.NewRepository(memory, f.bus)
		td, _, err := other.GetByID(ctx, added.ID())
		require.NoError(t, err)
		td.SetContext(todo.Context{UserID: "U9"})
		require.NoError(t, td.Claim(false))
		require.NoError(t, other.Save(ctx, td))
	}

	_, err := f.handler.ClaimTodo(ctx, ClaimTodo{Target: target("U1")})

	var claimed *todo.ClaimedBySomeoneElseError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, "U9", claimed.ClaimedByUserID)
}

func seededMock(t *testing.T, f *fixture, eventStore *mocks.MockEventStore) {
	t.Helper()
	td, err := todo.Add("todo-1", "text", "C1", "abc", todo.Context{UserID: "U1"})
	require.NoError(t, err)
	eventStore.SetEvents("todo-1", td.UncommittedEvents())
	require.NoError(t, f.readStore.PutLookup(context.Background(),
		readmodel.TodoLookupKey{SlackConversationID: "C1", ShortCode: "abc"}, "todo-1"))
}

func TestHandler_GivesUpAfterMaxAttempts(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	eventStore.SaveErr = fmt.Errorf("%w: todo-1 version 1", store.ErrConflict)
	f := newFixture(eventStore)
	f.handler.WithMaxAttempts(4)
	seededMock(t, f, eventStore)

	_, err := f.handler.TickTodo(context.Background(), TickTodo{Target: target("U1")})

	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Len(t, eventStore.SaveCalls, 4)
	assert.Len(t, eventStore.GetCalls, 4)
}

func TestHandler_PartialCommitIsNotRetried(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	eventStore.SaveErr = &store.PartialCommitError{AggregateID: "todo-1", Committed: 1, Err: errors.New("throttled")}
	f := newFixture(eventStore)
	seededMock(t, f, eventStore)

	_, err := f.handler.TickTodo(context.Background(), TickTodo{Target: target("U1")})

	assert.ErrorIs(t, err, store.ErrPartialCommit)
	assert.Len(t, eventStore.SaveCalls, 1)
}

func TestHandler_TransportErrorIsNotRetried(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	eventStore.SaveErr = errors.New("connection reset")
	f := newFixture(eventStore)
	seededMock(t, f, eventStore)

	_, err := f.handler.TickTodo(context.Background(), TickTodo{Target: target("U1")})

	assert.Error(t, err)
	assert.Len(t, eventStore.SaveCalls, 1)
}

// ============================================
// PurgeTodo Tests
// ============================================

func TestHandler_PurgeTodo(t *testing.T) {
	f := newTestHandler()
	ctx := context.Background()
	td := f.add(t)

	require.NoError(t, f.handler.PurgeTodo(ctx, PurgeTodo{Target: target("U1")}))

	events, err := f.memory.GetByID(ctx, td.ID())
	require.NoError(t, err)
	assert.Empty(t, events)
	_, found, err := f.readStore.GetTodo(ctx, td.ID())
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = f.readStore.GetLookup(ctx, readmodel.TodoLookupKey{SlackConversationID: "C1", ShortCode: "abc"})
	require.NoError(t, err)
	assert.False(t, found)
}
