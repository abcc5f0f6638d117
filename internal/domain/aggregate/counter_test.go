package aggregate

import (
	"errors"

	"github.com/example/slashtodo/internal/domain/event"
)

// counter is a minimal aggregate used to exercise Root and Repository
type counter struct {
	Root
	Total int
}

type incremented struct {
	event.Metadata
	By int `json:"by"`
}

func (incremented) Kind() string { return "Incremented" }

type unknownEvent struct {
	event.Metadata
}

func (unknownEvent) Kind() string { return "Unknown" }

var errNegative = errors.New("negative increment")

func newCounter() *counter { return &counter{} }

func (c *counter) LoadFromEvents(events []event.Event) error {
	return c.Load(events, c.apply)
}

func (c *counter) Increment(by int) error {
	if by < 0 {
		return errNegative
	}
	return c.Raise(incremented{Metadata: event.NewMetadata(c.ID(), c.Version(), "U1"), By: by}, c.apply)
}

func (c *counter) apply(e event.Event) error {
	switch ev := e.(type) {
	case incremented:
		c.Total += ev.By
		return nil
	}
	return errors.New("unexpected event")
}

func incrementedAt(id string, version, by int) incremented {
	return incremented{Metadata: event.NewMetadata(id, version, "U1"), By: by}
}
