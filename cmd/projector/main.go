package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/slashtodo/internal/config"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/kafka"
	"github.com/example/slashtodo/internal/infrastructure/natsutil"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/projection"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Projector] Failed to load config: %v", err)
	}

	log.Println("[Projector] ========================================")
	log.Println("[Projector] Slash Todo - Read Model Projector")
	log.Println("[Projector] ========================================")
	log.Printf("[Projector] Source: %s", cfg.Dispatcher)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Projector] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Projector] Connected to PostgreSQL (Read DB)")

	readStore := store.NewPostgresReadStore(db)
	if err := readStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("[Projector] Failed to create read tables: %v", err)
	}

	bus := dispatch.NewBus()
	projection.NewTodoLookup(readStore).RegisterSubscriptions(bus)
	projection.NewTodoList(readStore).RegisterSubscriptions(bus)
	projector := projection.NewProjector(bus, todo.Codec{})

	switch cfg.Dispatcher {
	case config.DispatcherKafka:
		log.Printf("[Projector] Kafka: %v", cfg.KafkaBrokers)
		log.Printf("[Projector] Topic: %s", cfg.KafkaTopic)
		log.Printf("[Projector] Group: %s", cfg.KafkaConsumerGroup)

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaConsumerGroup)
		defer consumer.Close()

		go func() {
			log.Println("[Projector] Starting event consumer...")
			if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
				log.Printf("[Projector] Consumer error: %v", err)
			}
		}()

	case config.DispatcherNATS:
		log.Printf("[Projector] NATS: %s", cfg.NATSURL)

		client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, 30*time.Second)
		if err != nil {
			log.Fatalf("[Projector] Failed to connect to NATS: %v", err)
		}
		defer client.Close()

		sub, err := natsutil.Subscribe(ctx, client.JS, "todo-projector", projector.HandleEvent)
		if err != nil {
			log.Fatalf("[Projector] Failed to subscribe: %v", err)
		}
		defer sub.Unsubscribe()
		log.Printf("[Projector] Listening to stream: %s", natsutil.EventsStream)

	default:
		log.Fatalf("[Projector] DISPATCHER=%s has nothing to consume; use kafka or nats", cfg.Dispatcher)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Projector] Shutting down...")
	cancel()
}
