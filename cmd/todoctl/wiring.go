package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/example/slashtodo/internal/command"
	"github.com/example/slashtodo/internal/config"
	"github.com/example/slashtodo/internal/domain/aggregate"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/kafka"
	"github.com/example/slashtodo/internal/infrastructure/natsutil"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/projection"
	"github.com/example/slashtodo/internal/query"
)

type app struct {
	commands  *command.Handler
	queries   *query.Handler
	projector *projection.Projector
	postgres  *store.PostgresEventStore
	readStore store.ReadStoreInterface
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires stores and dispatchers from cfg. A memory event store pairs
// with a memory read store; anything else reads from Postgres. Broker
// dispatchers are paired with the local bus so a command sees its own
// writes; the remote projector skips what is already projected.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	codec := todo.Codec{}

	var db *sql.DB
	connect := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		if db, err = store.ConnectPostgres(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		return db, nil
	}

	var eventStore store.EventStore
	switch cfg.EventStore {
	case config.EventStoreMemory:
		eventStore = store.NewMemoryEventStore(codec)
	case config.EventStorePostgres:
		db, err := connect()
		if err != nil {
			return nil, a.fail(err)
		}
		pg := store.NewPostgresEventStore(db, codec, "")
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, a.fail(err)
		}
		a.postgres = pg
		eventStore = pg
	case config.EventStoreDynamo:
		client, err := store.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, a.fail(err)
		}
		eventStore = store.NewDynamoEventStore(client, codec, cfg.DynamoTable)
	}

	var readStore store.ReadStoreInterface = store.NewReadStore()
	if cfg.EventStore != config.EventStoreMemory {
		db, err := connect()
		if err != nil {
			return nil, a.fail(err)
		}
		pg := store.NewPostgresReadStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, a.fail(err)
		}
		readStore = pg
	}

	a.readStore = readStore

	bus := dispatch.NewBus()
	lookup := projection.NewTodoLookup(readStore)
	lookup.RegisterSubscriptions(bus)
	projection.NewTodoList(readStore).RegisterSubscriptions(bus)
	a.projector = projection.NewProjector(bus, codec)

	var dispatcher aggregate.Dispatcher
	switch cfg.Dispatcher {
	case config.DispatcherLocal:
		dispatcher = bus
	case config.DispatcherKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() { producer.Close() })
		dispatcher = dispatch.Multi{bus, kafka.NewDispatcher(producer, codec)}
	case config.DispatcherNATS:
		client, err := natsutil.ConnectJetStream(cfg.NATSURL)
		if err != nil {
			return nil, a.fail(fmt.Errorf("failed to connect to NATS: %w", err))
		}
		a.closers = append(a.closers, client.Close)
		dispatcher = dispatch.Multi{bus, natsutil.NewDispatcher(client.JS, codec)}
	}
	log.Printf("[todoctl] Event store: %s, dispatcher: %s", cfg.EventStore, cfg.Dispatcher)

	repo := todo.NewRepository(eventStore, dispatcher)
	a.commands = command.NewHandler(repo, lookup, readStore).WithMaxAttempts(cfg.CommandMaxAttempts)
	a.queries = query.NewHandler(readStore)
	return a, nil
}

func (a *app) fail(err error) error {
	a.Close()
	return err
}
