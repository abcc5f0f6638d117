package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/example/slashtodo/internal/config"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/dispatch"
	"github.com/example/slashtodo/internal/infrastructure/kinesis"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/projection"
)

var projector *projection.Projector

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Projector] Failed to load config: %v", err)
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Lambda Projector] Failed to connect to PostgreSQL: %v", err)
	}

	readStore := store.NewPostgresReadStore(db)
	if err := readStore.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("[Lambda Projector] Failed to create read tables: %v", err)
	}

	bus := dispatch.NewBus()
	projection.NewTodoLookup(readStore).RegisterSubscriptions(bus)
	projection.NewTodoList(readStore).RegisterSubscriptions(bus)
	projector = projection.NewProjector(bus, todo.Codec{})

	log.Println("[Lambda Projector] Initialized successfully")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	log.Printf("[Lambda Projector] Received %d records", len(kinesisEvent.Records))

	resp := kinesis.HandleKinesisEvent(ctx, kinesisEvent, projector.HandleRecord)

	successCount := len(kinesisEvent.Records) - len(resp.BatchItemFailures)
	log.Printf("[Lambda Projector] Processed %d/%d records successfully", successCount, len(kinesisEvent.Records))
	return resp, nil
}

func main() {
	lambda.Start(handler)
}
