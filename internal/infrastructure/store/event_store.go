package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/slashtodo/internal/domain/event"
)

// MaxBatchSize is the number of events committed in one atomic sub-batch.
const MaxBatchSize = 100

var (
	ErrConflict      = errors.New("event version slot already occupied")
	ErrPartialCommit = errors.New("event batch partially committed")
	ErrInvalidBatch  = errors.New("events are not contiguous from the expected version")
	ErrUnknownKind   = errors.New("unknown event kind")
)

// Record is the stored form of an event. Kind selects the concrete type
// Data is decoded into.
type Record struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	EventID       string          `json:"event_id"`
	Kind          string          `json:"kind"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PartialCommitError reports that some sub-batches of a Save are durable
// while a later one failed. It deliberately does not match ErrConflict:
// retrying would collide with the events that did commit.
type PartialCommitError struct {
	AggregateID string
	Committed   int
	Err         error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("aggregate %s: %d events committed before failure: %v", e.AggregateID, e.Committed, e.Err)
}

func (e *PartialCommitError) Is(target error) bool { return target == ErrPartialCommit }

// Cause returns the error that stopped the later sub-batch.
func (e *PartialCommitError) Cause() error { return e.Err }

// ValidateBatch checks that events belong to aggregateID and carry the
// versions expectedStartVersion, expectedStartVersion+1, ...
func ValidateBatch(aggregateID string, expectedStartVersion int, events []event.Event) error {
	for i, e := range events {
		meta := e.Meta()
		if meta.AggregateID != aggregateID {
			return fmt.Errorf("%w: event %s belongs to %s, not %s", ErrInvalidBatch, meta.ID, meta.AggregateID, aggregateID)
		}
		if meta.OriginalVersion != expectedStartVersion+i {
			return fmt.Errorf("%w: position %d has version %d, want %d",
				ErrInvalidBatch, i, meta.OriginalVersion, expectedStartVersion+i)
		}
	}
	return nil
}

// Chunk splits records into sub-batches of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// EncodeAll encodes events with codec, preserving order.
func EncodeAll(codec Codec, events []event.Event) ([]Record, error) {
	records := make([]Record, 0, len(events))
	for _, e := range events {
		r, err := codec.Encode(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s event: %w", e.Kind(), err)
		}
		records = append(records, r)
	}
	return records, nil
}

// commitBatches runs commit once per sub-batch and classifies failures
// after the first committed sub-batch as partial commits.
func commitBatches(aggregateID string, records []Record, batchSize int, commit func(i int, batch []Record) error) error {
	committed := 0
	for i, batch := range Chunk(records, batchSize) {
		if err := commit(i, batch); err != nil {
			if committed > 0 {
				return &PartialCommitError{AggregateID: aggregateID, Committed: committed, Err: err}
			}
			return err
		}
		committed += len(batch)
	}
	return nil
}

// MemoryEventStore keeps encoded records in memory
type MemoryEventStore struct {
	mu        sync.RWMutex
	codec     Codec
	records   map[string][]Record // aggregateID -> records ordered by version
	batchSize int

	// FailBatch, when set, is consulted before each sub-batch commits.
	// A non-nil return aborts that sub-batch.
	FailBatch func(batchIndex int) error
}

func NewMemoryEventStore(codec Codec) *MemoryEventStore {
	return &MemoryEventStore{
		codec:     codec,
		records:   make(map[string][]Record),
		batchSize: MaxBatchSize,
	}
}

// WithBatchSize overrides the sub-batch limit
func (es *MemoryEventStore) WithBatchSize(n int) *MemoryEventStore {
	es.batchSize = n
	return es
}

// GetByID decodes the aggregate's records in version order
func (es *MemoryEventStore) GetByID(ctx context.Context, aggregateID string) ([]event.Event, error) {
	es.mu.RLock()
	records := append([]Record(nil), es.records[aggregateID]...)
	es.mu.RUnlock()

	events := make([]event.Event, 0, len(records))
	for _, r := range records {
		e, err := es.codec.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", r.EventID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Save appends events, one lock-held sub-batch at a time
func (es *MemoryEventStore) Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error {
	if err := ValidateBatch(aggregateID, expectedStartVersion, events); err != nil {
		return err
	}
	records, err := EncodeAll(es.codec, events)
	if err != nil {
		return err
	}

	return commitBatches(aggregateID, records, es.batchSize, func(i int, batch []Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if es.FailBatch != nil {
			if err := es.FailBatch(i); err != nil {
				return err
			}
		}

		es.mu.Lock()
		defer es.mu.Unlock()

		existing := es.records[aggregateID]
		for _, r := range batch {
			if r.Version < len(existing) {
				return fmt.Errorf("%w: %s version %d", ErrConflict, aggregateID, r.Version)
			}
		}
		// Contiguity: the first slot of the batch must be the next free one.
		if batch[0].Version != len(existing) {
			return fmt.Errorf("%w: %s next version is %d, batch starts at %d",
				ErrInvalidBatch, aggregateID, len(existing), batch[0].Version)
		}
		es.records[aggregateID] = append(existing, batch...)
		return nil
	})
}

// Delete removes every record of the aggregate
func (es *MemoryEventStore) Delete(ctx context.Context, aggregateID string) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.records, aggregateID)
	return nil
}

// GetAllRecords returns every stored record, grouped by aggregate
func (es *MemoryEventStore) GetAllRecords() []Record {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var all []Record
	for _, records := range es.records {
		all = append(all, records...)
	}
	return all
}
