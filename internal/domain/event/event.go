package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact describing one state transition of an aggregate.
type Event interface {
	Meta() Metadata
	// Kind is the discriminator stored alongside the serialized payload.
	Kind() string
}

// Metadata carries the fields shared by every domain event.
// Concrete events embed it and add their payload.
type Metadata struct {
	ID          string `json:"id"`
	AggregateID string `json:"aggregate_id"`
	// OriginalVersion is the aggregate version before the event was applied.
	// It doubles as the ordering key and the optimistic concurrency token.
	OriginalVersion int       `json:"original_version"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          string    `json:"user_id"`
}

func (m Metadata) Meta() Metadata { return m }

// NewMetadata stamps a fresh event id and the current UTC time.
func NewMetadata(aggregateID string, originalVersion int, userID string) Metadata {
	return Metadata{
		ID:              uuid.New().String(),
		AggregateID:     aggregateID,
		OriginalVersion: originalVersion,
		Timestamp:       time.Now().UTC(),
		UserID:          userID,
	}
}
