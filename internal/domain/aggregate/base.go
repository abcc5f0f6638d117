package aggregate

import (
	"errors"
	"fmt"

	"github.com/example/slashtodo/internal/domain/event"
)

var (
	ErrVersionMismatch   = errors.New("event version does not match aggregate version")
	ErrAggregateMismatch = errors.New("event belongs to a different aggregate")
)

// Aggregate defines the interface for event-sourced aggregates
type Aggregate interface {
	ID() string
	Version() int
	// LoadFromEvents replays historic events onto a freshly constructed aggregate.
	LoadFromEvents(events []event.Event) error
	UncommittedEvents() []event.Event
	ClearUncommittedEvents()
}

// ApplyFunc mutates concrete aggregate state for a single event.
type ApplyFunc func(event.Event) error

// Root holds the bookkeeping every aggregate shares: identity, version and
// the buffer of events raised since the aggregate was loaded.
// Concrete aggregates embed it and pass their own apply hook.
type Root struct {
	id          string
	version     int
	uncommitted []event.Event
}

func (r *Root) ID() string { return r.id }

// SetID assigns the identity. Factories call it before raising the first event.
func (r *Root) SetID(id string) { r.id = id }

// Version is the number of events applied so far, which is also the
// OriginalVersion the next raised event will carry.
func (r *Root) Version() int { return r.version }

// UncommittedEvents returns a copy of the events raised but not yet persisted.
func (r *Root) UncommittedEvents() []event.Event {
	if len(r.uncommitted) == 0 {
		return nil
	}
	out := make([]event.Event, len(r.uncommitted))
	copy(out, r.uncommitted)
	return out
}

// HasUncommittedEvents reports whether a Save would touch the event store.
func (r *Root) HasUncommittedEvents() bool { return len(r.uncommitted) > 0 }

// ClearUncommittedEvents drops the buffer. Only the Repository calls this,
// after the events are durable and published.
func (r *Root) ClearUncommittedEvents() { r.uncommitted = nil }

// Load replays events in order. Nothing is buffered.
func (r *Root) Load(events []event.Event, apply ApplyFunc) error {
	for _, e := range events {
		if err := r.step(e, apply); err != nil {
			return err
		}
	}
	return nil
}

// Raise applies a newly created event and buffers it as uncommitted.
func (r *Root) Raise(e event.Event, apply ApplyFunc) error {
	if err := r.step(e, apply); err != nil {
		return err
	}
	r.uncommitted = append(r.uncommitted, e)
	return nil
}

func (r *Root) step(e event.Event, apply ApplyFunc) error {
	meta := e.Meta()
	if r.id == "" {
		r.id = meta.AggregateID
	}
	if meta.AggregateID != r.id {
		return fmt.Errorf("%w: %s event for %s applied to %s", ErrAggregateMismatch, e.Kind(), meta.AggregateID, r.id)
	}
	if meta.OriginalVersion != r.version {
		return fmt.Errorf("%w: %s event at version %d, aggregate %s at %d",
			ErrVersionMismatch, e.Kind(), meta.OriginalVersion, r.id, r.version)
	}
	if err := apply(e); err != nil {
		return fmt.Errorf("failed to apply %s event: %w", e.Kind(), err)
	}
	r.version++
	return nil
}
