package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readStoreContract runs the same checks against any implementation
func readStoreContract(t *testing.T, rs store.ReadStoreInterface) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, rs.PutTodo(ctx, &readmodel.TodoReadModel{
			ID: "t1", SlackConversationID: "C1", ShortCode: "b", Text: "second",
			CreatedAt: now, UpdatedAt: now, Version: 1,
		}))

		m, found, err := rs.GetTodo(ctx, "t1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "second", m.Text)
		assert.Equal(t, 1, m.Version)

		_, found, err = rs.GetTodo(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("update", func(t *testing.T) {
		found, err := rs.UpdateTodo(ctx, "t1", func(m *readmodel.TodoReadModel) {
			m.IsTicked = true
			m.Version = 2
		})
		require.NoError(t, err)
		assert.True(t, found)

		m, _, err := rs.GetTodo(ctx, "t1")
		require.NoError(t, err)
		assert.True(t, m.IsTicked)
		assert.Equal(t, 2, m.Version)

		found, err = rs.UpdateTodo(ctx, "missing", func(*readmodel.TodoReadModel) {})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("list sorted by short code", func(t *testing.T) {
		require.NoError(t, rs.PutTodo(ctx, &readmodel.TodoReadModel{
			ID: "t2", SlackConversationID: "C1", ShortCode: "a", Text: "first",
			CreatedAt: now, UpdatedAt: now, Version: 1,
		}))
		require.NoError(t, rs.PutTodo(ctx, &readmodel.TodoReadModel{
			ID: "t3", SlackConversationID: "C2", ShortCode: "a", Text: "elsewhere",
			CreatedAt: now, UpdatedAt: now, Version: 1,
		}))

		todos, err := rs.ListTodos(ctx, "C1")
		require.NoError(t, err)
		require.Len(t, todos, 2)
		assert.Equal(t, "a", todos[0].ShortCode)
		assert.Equal(t, "b", todos[1].ShortCode)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, rs.DeleteTodo(ctx, "t2"))
		todos, err := rs.ListTodos(ctx, "C1")
		require.NoError(t, err)
		assert.Len(t, todos, 1)
	})

	t.Run("lookups", func(t *testing.T) {
		key := readmodel.TodoLookupKey{SlackConversationID: "C1", ShortCode: "b"}
		require.NoError(t, rs.PutLookup(ctx, key, "t1"))

		id, found, err := rs.GetLookup(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "t1", id)

		require.NoError(t, rs.PutLookup(ctx, key, "t1"), "same todo again is fine")
		err = rs.PutLookup(ctx, key, "t9")
		assert.ErrorIs(t, err, store.ErrLookupTaken)
		id, _, err = rs.GetLookup(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "t1", id)

		require.NoError(t, rs.DeleteLookup(ctx, key))
		_, found, err = rs.GetLookup(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("reset", func(t *testing.T) {
		key := readmodel.TodoLookupKey{SlackConversationID: "C1", ShortCode: "b"}
		require.NoError(t, rs.PutLookup(ctx, key, "t1"))

		require.NoError(t, rs.Reset(ctx))

		_, found, err := rs.GetTodo(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = rs.GetLookup(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
		todos, err := rs.ListTodos(ctx, "C2")
		require.NoError(t, err)
		assert.Empty(t, todos)
	})
}

func TestReadStore(t *testing.T) {
	readStoreContract(t, store.NewReadStore())
}

func TestReadStore_ReturnsCopies(t *testing.T) {
	rs := store.NewReadStore()
	ctx := context.Background()
	m := &readmodel.TodoReadModel{ID: "t1", SlackConversationID: "C1", Text: "orig"}
	require.NoError(t, rs.PutTodo(ctx, m))

	m.Text = "changed"
	got, _, _ := rs.GetTodo(ctx, "t1")
	assert.Equal(t, "orig", got.Text)

	got.Text = "changed again"
	again, _, _ := rs.GetTodo(ctx, "t1")
	assert.Equal(t, "orig", again.Text)
}
