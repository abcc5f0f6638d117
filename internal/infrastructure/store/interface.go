package store

import (
	"context"

	"github.com/example/slashtodo/internal/domain/event"
)

// EventStore is append-only storage partitioned by aggregate id.
// The (aggregateID, version) slot is the only concurrency check: appending
// to an occupied slot fails with ErrConflict.
type EventStore interface {
	// GetByID returns the aggregate's events ordered by OriginalVersion.
	// No history is an empty result, not an error.
	GetByID(ctx context.Context, aggregateID string) ([]event.Event, error)
	// Save appends events that are contiguous from expectedStartVersion.
	Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error
	// Delete removes the aggregate's whole history.
	Delete(ctx context.Context, aggregateID string) error
}

// Codec translates between one aggregate type's closed set of events and
// stored records, dispatching on Record.Kind.
type Codec interface {
	AggregateType() string
	Encode(e event.Event) (Record, error)
	Decode(r Record) (event.Event, error)
}
