package todo

import (
	"encoding/json"
	"fmt"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

// Codec maps todo events to store records by kind
type Codec struct{}

var _ store.Codec = Codec{}

func (Codec) AggregateType() string { return AggregateType }

// Encode serializes the event payload and records its kind
func (Codec) Encode(e event.Event) (store.Record, error) {
	if _, ok := e.(Event); !ok {
		return store.Record{}, fmt.Errorf("%w: %T is not a todo event", store.ErrUnknownKind, e)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return store.Record{}, err
	}
	meta := e.Meta()
	return store.Record{
		AggregateID:   meta.AggregateID,
		AggregateType: AggregateType,
		Version:       meta.OriginalVersion,
		EventID:       meta.ID,
		Kind:          e.Kind(),
		Data:          data,
		Timestamp:     meta.Timestamp,
	}, nil
}

// Decode picks the concrete type from the record kind
func (Codec) Decode(r store.Record) (event.Event, error) {
	switch r.Kind {
	case EventTodoAdded:
		return decode[TodoAdded](r)
	case EventTodoTicked:
		return decode[TodoTicked](r)
	case EventTodoUnticked:
		return decode[TodoUnticked](r)
	case EventTodoClaimed:
		return decode[TodoClaimed](r)
	case EventTodoFreed:
		return decode[TodoFreed](r)
	case EventTodoRemoved:
		return decode[TodoRemoved](r)
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnknownKind, r.Kind)
}

func decode[E Event](r store.Record) (event.Event, error) {
	var e E
	if err := json.Unmarshal(r.Data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", r.Kind, err)
	}
	if meta := e.Meta(); meta.AggregateID != r.AggregateID || meta.OriginalVersion != r.Version {
		return nil, fmt.Errorf("%s payload (%s@%d) disagrees with record (%s@%d)",
			r.Kind, meta.AggregateID, meta.OriginalVersion, r.AggregateID, r.Version)
	}
	return e, nil
}
