package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

// Projector turns records arriving from a broker back into domain events
// and publishes them on a local bus where the read models subscribe.
type Projector struct {
	codecs map[string]store.Codec
	bus    *dispatch.Bus
}

func NewProjector(bus *dispatch.Bus, codecs ...store.Codec) *Projector {
	p := &Projector{codecs: make(map[string]store.Codec), bus: bus}
	for _, c := range codecs {
		p.codecs[c.AggregateType()] = c
	}
	return p
}

// HandleEvent decodes a JSON store.Record; key is ignored
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var record store.Record
	if err := json.Unmarshal(value, &record); err != nil {
		return err
	}
	return p.HandleRecord(ctx, record)
}

// HandleRecord publishes one record. Unknown aggregate types are skipped.
func (p *Projector) HandleRecord(ctx context.Context, record store.Record) error {
	log.Printf("[Projector] Received event: %s (aggregate: %s@%d)", record.Kind, record.AggregateID, record.Version)

	codec, ok := p.codecs[record.AggregateType]
	if !ok {
		return nil
	}
	e, err := codec.Decode(record)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", record.EventID, err)
	}
	return p.bus.Publish(ctx, e)
}

// Replay projects previously stored records in order, e.g. to rebuild the
// read models from the event store. Failing records are logged and skipped.
func (p *Projector) Replay(ctx context.Context, records []store.Record) (projected int) {
	log.Printf("[Projector] Replaying %d events from event store...", len(records))
	for _, record := range records {
		if err := p.HandleRecord(ctx, record); err != nil {
			log.Printf("[Projector] Error replaying event %s: %v", record.EventID, err)
			continue
		}
		projected++
	}
	log.Printf("[Projector] Replay completed: %d/%d events projected", projected, len(records))
	return projected
}

// Resetter empties the read models before a rebuild
type Resetter interface {
	Reset(ctx context.Context) error
}

// Rebuild resets the read models and replays records into them, so todos
// whose history is gone disappear from the read side as well.
func (p *Projector) Rebuild(ctx context.Context, readStore Resetter, records []store.Record) (int, error) {
	if err := readStore.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset read models: %w", err)
	}
	return p.Replay(ctx, records), nil
}
