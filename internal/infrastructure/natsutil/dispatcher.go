package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Dispatcher publishes committed events to JetStream and waits for the ack.
// The event id is the message id, so a republish after a crash is dropped
// by the stream's duplicate window.
type Dispatcher struct {
	js    Publisher
	codec store.Codec
}

func NewDispatcher(js Publisher, codec store.Codec) *Dispatcher {
	return &Dispatcher{js: js, codec: codec}
}

func (d *Dispatcher) Publish(ctx context.Context, e event.Event) error {
	record, err := d.codec.Encode(e)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := d.js.Publish(Subject(record.Kind), payload, nats.MsgId(record.EventID), nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish %s to jetstream: %w", record.EventID, err)
	}
	return nil
}
