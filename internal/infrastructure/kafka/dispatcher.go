package kafka

import (
	"context"
	"fmt"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

// Dispatcher publishes committed events to Kafka as encoded store records,
// keyed by aggregate id.
type Dispatcher struct {
	producer *Producer
	codec    store.Codec
}

func NewDispatcher(producer *Producer, codec store.Codec) *Dispatcher {
	return &Dispatcher{producer: producer, codec: codec}
}

// Publish returns once the broker acknowledged the message
func (d *Dispatcher) Publish(ctx context.Context, e event.Event) error {
	record, err := d.codec.Encode(e)
	if err != nil {
		return err
	}
	if err := d.producer.Publish(ctx, record.AggregateID, record); err != nil {
		return fmt.Errorf("failed to publish %s to kafka: %w", record.EventID, err)
	}
	return nil
}
