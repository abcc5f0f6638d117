package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
	opts    int
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.msgs = append(p.msgs, published{subject: subj, data: data, opts: len(opts)})
	return &nats.PubAck{Stream: EventsStream, Sequence: uint64(len(p.msgs))}, nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "todo.event.TodoTicked", Subject(todo.EventTodoTicked))
}

func TestDispatcher_Publish(t *testing.T) {
	js := &fakePublisher{}
	d := NewDispatcher(js, todo.Codec{})
	td, err := todo.Add("todo-1", "text", "C1", "a", todo.Context{UserID: "U1"})
	require.NoError(t, err)
	require.NoError(t, td.Tick())

	for _, e := range td.UncommittedEvents() {
		require.NoError(t, d.Publish(context.Background(), e))
	}

	require.Len(t, js.msgs, 2)
	assert.Equal(t, "todo.event.TodoAdded", js.msgs[0].subject)
	assert.Equal(t, "todo.event.TodoTicked", js.msgs[1].subject)
	// message id and context
	assert.Equal(t, 2, js.msgs[0].opts)

	var record store.Record
	require.NoError(t, json.Unmarshal(js.msgs[1].data, &record))
	assert.Equal(t, 1, record.Version)
	assert.Equal(t, td.UncommittedEvents()[1].Meta().ID, record.EventID)
}

func TestDispatcher_PublishError(t *testing.T) {
	noResponders := errors.New("no responders")
	d := NewDispatcher(&fakePublisher{err: noResponders}, todo.Codec{})
	td, err := todo.Add("todo-1", "text", "C1", "a", todo.Context{UserID: "U1"})
	require.NoError(t, err)

	err = d.Publish(context.Background(), td.UncommittedEvents()[0])

	assert.ErrorIs(t, err, noResponders)
}

func TestClient_CloseNil(t *testing.T) {
	var c *Client
	assert.NotPanics(t, c.Close)
}
