package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository() (*Repository[*counter], *mocks.MockEventStore, *mocks.MockDispatcher) {
	eventStore := mocks.NewMockEventStore()
	dispatcher := mocks.NewMockDispatcher()
	return NewRepository(eventStore, dispatcher, newCounter), eventStore, dispatcher
}

// ============================================
// GetByID Tests
// ============================================

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, _, _ := newTestRepository()

	c, found, err := repo.GetByID(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, c)
}

func TestRepository_GetByID_Replays(t *testing.T) {
	repo, eventStore, _ := newTestRepository()
	eventStore.SetEvents("c1", []event.Event{
		incrementedAt("c1", 0, 2),
		incrementedAt("c1", 1, 5),
	})

	c, found, err := repo.GetByID(context.Background(), "c1")

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 7, c.Total)
	assert.Equal(t, 2, c.Version())
	assert.False(t, c.HasUncommittedEvents())
}

func TestRepository_GetByID_StoreError(t *testing.T) {
	repo, eventStore, _ := newTestRepository()
	eventStore.GetErr = errors.New("connection refused")

	_, found, err := repo.GetByID(context.Background(), "c1")

	assert.Error(t, err)
	assert.False(t, found)
}

// ============================================
// Save Tests
// ============================================

func TestRepository_Save_NoOpWithoutEvents(t *testing.T) {
	repo, eventStore, dispatcher := newTestRepository()
	c := newCounter()
	c.SetID("c1")

	require.NoError(t, repo.Save(context.Background(), c))

	assert.Empty(t, eventStore.SaveCalls)
	assert.Empty(t, dispatcher.Published)
}

func TestRepository_Save_AppendsThenPublishesInOrder(t *testing.T) {
	repo, eventStore, dispatcher := newTestRepository()
	c := newCounter()
	c.SetID("c1")
	require.NoError(t, c.Increment(1))
	require.NoError(t, c.Increment(2))
	raised := c.UncommittedEvents()

	require.NoError(t, repo.Save(context.Background(), c))

	require.Len(t, eventStore.SaveCalls, 1)
	assert.Equal(t, "c1", eventStore.SaveCalls[0].AggregateID)
	assert.Equal(t, 0, eventStore.SaveCalls[0].ExpectedStartVersion)
	assert.Equal(t, raised, dispatcher.Published)
	assert.False(t, c.HasUncommittedEvents())
}

func TestRepository_Save_ExpectedVersionAfterLoad(t *testing.T) {
	repo, eventStore, _ := newTestRepository()
	eventStore.SetEvents("c1", []event.Event{incrementedAt("c1", 0, 1)})

	c, _, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NoError(t, c.Increment(1))
	require.NoError(t, repo.Save(context.Background(), c))

	require.Len(t, eventStore.SaveCalls, 1)
	assert.Equal(t, 1, eventStore.SaveCalls[0].ExpectedStartVersion)
	assert.Len(t, eventStore.Events("c1"), 2)
}

func TestRepository_Save_ConflictKeepsBuffer(t *testing.T) {
	repo, eventStore, dispatcher := newTestRepository()
	ctx := context.Background()
	eventStore.SetEvents("c1", []event.Event{incrementedAt("c1", 0, 1)})

	first, _, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	second, _, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, first.Increment(1))
	require.NoError(t, second.Increment(10))

	require.NoError(t, repo.Save(ctx, first))
	err = repo.Save(ctx, second)

	assert.ErrorIs(t, err, store.ErrConflict)
	assert.True(t, second.HasUncommittedEvents())
	assert.Len(t, dispatcher.Published, 1)
	assert.Len(t, eventStore.Events("c1"), 2)
}

func TestRepository_Save_PartialCommitIsNotAConflict(t *testing.T) {
	repo, eventStore, dispatcher := newTestRepository()
	eventStore.SaveErr = &store.PartialCommitError{AggregateID: "c1", Committed: 100, Err: errors.New("timeout")}
	c := newCounter()
	c.SetID("c1")
	require.NoError(t, c.Increment(1))

	err := repo.Save(context.Background(), c)

	assert.ErrorIs(t, err, store.ErrPartialCommit)
	assert.NotErrorIs(t, err, store.ErrConflict)
	assert.True(t, c.HasUncommittedEvents())
	assert.Empty(t, dispatcher.Published)
}

func TestRepository_Save_PublishFailureAfterCommit(t *testing.T) {
	repo, eventStore, dispatcher := newTestRepository()
	brokerDown := errors.New("broker down")
	dispatcher.PublishErr = brokerDown
	dispatcher.FailAfter = 1

	c := newCounter()
	c.SetID("c1")
	require.NoError(t, c.Increment(1))
	require.NoError(t, c.Increment(1))

	err := repo.Save(context.Background(), c)

	var publishErr *PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, 1, publishErr.Published)
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, brokerDown)
	assert.Len(t, eventStore.Events("c1"), 2)
	assert.True(t, c.HasUncommittedEvents())
}

func TestRepository_Save_WithoutDispatcher(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	repo := NewRepository(eventStore, nil, newCounter)
	c := newCounter()
	c.SetID("c1")
	require.NoError(t, c.Increment(1))

	require.NoError(t, repo.Save(context.Background(), c))
	assert.False(t, c.HasUncommittedEvents())
}

// ============================================
// Delete Tests
// ============================================

func TestRepository_Delete(t *testing.T) {
	repo, eventStore, _ := newTestRepository()
	eventStore.SetEvents("c1", []event.Event{incrementedAt("c1", 0, 1)})

	require.NoError(t, repo.Delete(context.Background(), "c1"))

	assert.Equal(t, []string{"c1"}, eventStore.DeleteCalls)
	_, found, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, found)
}
