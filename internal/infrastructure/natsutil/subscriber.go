package natsutil

import (
	"context"
	"log"

	"github.com/nats-io/nats.go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

// Subscribe attaches a durable consumer to every event subject. With one
// unacknowledged message at a time, handler sees events in stream order;
// failures are nak'ed and redelivered.
func Subscribe(ctx context.Context, js nats.JetStreamContext, durable string, handler MessageHandler) (*nats.Subscription, error) {
	return js.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		if err := handler(ctx, []byte(msg.Subject), msg.Data); err != nil {
			log.Printf("[NATS] Error handling %s: %v", msg.Subject, err)
			_ = msg.Nak()
			return
		}
		if err := msg.Ack(); err != nil {
			log.Printf("[NATS] Error acking %s: %v", msg.Subject, err)
		}
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.DeliverAll(),
		nats.MaxAckPending(1),
	)
}
