package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

var ErrPublish = errors.New("failed to publish committed event")

// Dispatcher publishes committed events to subscribers.
// Only the Repository calls it.
type Dispatcher interface {
	Publish(ctx context.Context, e event.Event) error
}

// PublishError reports that the events are durable but dispatch stopped
// after Published of them.
type PublishError struct {
	Published int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%v after %d events: %v", ErrPublish, e.Published, e.Err)
}

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

func (e *PublishError) Unwrap() error { return e.Err }

// Repository loads aggregates by replaying their events and saves them by
// appending the uncommitted events, then publishing them in order.
type Repository[T Aggregate] struct {
	eventStore   store.EventStore
	dispatcher   Dispatcher
	newAggregate func() T
}

func NewRepository[T Aggregate](eventStore store.EventStore, dispatcher Dispatcher, newAggregate func() T) *Repository[T] {
	return &Repository[T]{
		eventStore:   eventStore,
		dispatcher:   dispatcher,
		newAggregate: newAggregate,
	}
}

// GetByID returns the aggregate, a boolean indicating if any history was
// found, and any error. An aggregate without events is reported as absent.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	events, err := r.eventStore.GetByID(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("failed to load %s: %w", id, err)
	}
	if len(events) == 0 {
		return zero, false, nil
	}

	agg := r.newAggregate()
	if err := agg.LoadFromEvents(events); err != nil {
		return zero, false, fmt.Errorf("failed to replay %s: %w", id, err)
	}
	return agg, true, nil
}

// Save persists the uncommitted events and publishes each of them, in
// order, before clearing the buffer. On any failure the buffer is kept.
func (r *Repository[T]) Save(ctx context.Context, agg T) error {
	uncommitted := agg.UncommittedEvents()
	if len(uncommitted) == 0 {
		return nil
	}

	expectedStartVersion := uncommitted[0].Meta().OriginalVersion
	if err := r.eventStore.Save(ctx, agg.ID(), expectedStartVersion, uncommitted); err != nil {
		if errors.Is(err, store.ErrPartialCommit) {
			log.Printf("[Repository] Partial commit for %s: %v", agg.ID(), err)
		}
		return fmt.Errorf("failed to save %s: %w", agg.ID(), err)
	}

	if r.dispatcher != nil {
		for i, e := range uncommitted {
			if err := r.dispatcher.Publish(ctx, e); err != nil {
				return &PublishError{Published: i, Err: err}
			}
		}
	}

	agg.ClearUncommittedEvents()
	return nil
}

// Delete hard-deletes the aggregate's history. Administrative use only.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.eventStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}
