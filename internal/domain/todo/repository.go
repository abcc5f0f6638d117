package todo

import (
	"github.com/example/slashtodo/internal/domain/aggregate"
	"github.com/example/slashtodo/internal/infrastructure/store"
)

// Repository loads and saves todos
type Repository = aggregate.Repository[*Todo]

func NewRepository(eventStore store.EventStore, dispatcher aggregate.Dispatcher) *Repository {
	return aggregate.NewRepository(eventStore, dispatcher, New)
}
