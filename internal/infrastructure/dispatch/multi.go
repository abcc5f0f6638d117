package dispatch

import (
	"context"

	"github.com/example/slashtodo/internal/domain/aggregate"
	"github.com/example/slashtodo/internal/domain/event"
)

// Multi publishes to each dispatcher in turn and stops at the first error
type Multi []aggregate.Dispatcher

func (m Multi) Publish(ctx context.Context, e event.Event) error {
	for _, d := range m {
		if err := d.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
