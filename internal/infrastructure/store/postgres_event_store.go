package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/slashtodo/internal/domain/event"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE raised on a primary key collision
const uniqueViolation = "23505"

const createEventsTable = `
CREATE TABLE IF NOT EXISTS %[1]s (
	seq            BIGSERIAL,
	aggregate_id   TEXT        NOT NULL,
	version        INTEGER     NOT NULL,
	event_id       TEXT        NOT NULL,
	aggregate_type TEXT        NOT NULL,
	kind           TEXT        NOT NULL,
	data           JSONB       NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (aggregate_id, version)
);
ALTER TABLE %[1]s ADD COLUMN IF NOT EXISTS seq BIGSERIAL`

// PostgresEventStore stores events in PostgreSQL
type PostgresEventStore struct {
	db        *sql.DB
	codec     Codec
	table     string
	batchSize int
}

func NewPostgresEventStore(db *sql.DB, codec Codec, table string) *PostgresEventStore {
	if table == "" {
		table = "todo_events"
	}
	return &PostgresEventStore{
		db:        db,
		codec:     codec,
		table:     table,
		batchSize: MaxBatchSize,
	}
}

// EnsureSchema creates the events table if it does not exist
func (es *PostgresEventStore) EnsureSchema(ctx context.Context) error {
	_, err := es.db.ExecContext(ctx, fmt.Sprintf(createEventsTable, pq.QuoteIdentifier(es.table)))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", es.table, err)
	}
	return nil
}

// GetByID returns all events for an aggregate ordered by version
func (es *PostgresEventStore) GetByID(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := es.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT aggregate_id, aggregate_type, version, event_id, kind, data, created_at
		 FROM %s
		 WHERE aggregate_id = $1
		 ORDER BY version ASC`, pq.QuoteIdentifier(es.table)),
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		e, err := es.codec.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", r.EventID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Save inserts events, each sub-batch in its own transaction.
// The primary key on (aggregate_id, version) is the concurrency check.
func (es *PostgresEventStore) Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error {
	if err := ValidateBatch(aggregateID, expectedStartVersion, events); err != nil {
		return err
	}
	records, err := EncodeAll(es.codec, events)
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`INSERT INTO %s (aggregate_id, version, event_id, aggregate_type, kind, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`, pq.QuoteIdentifier(es.table))

	return commitBatches(aggregateID, records, es.batchSize, func(_ int, batch []Record) error {
		return es.insertBatch(ctx, insert, batch)
	})
}

func (es *PostgresEventStore) insertBatch(ctx context.Context, insert string, batch []Record) error {
	tx, err := es.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range batch {
		_, err := tx.ExecContext(ctx, insert,
			r.AggregateID,
			r.Version,
			r.EventID,
			r.AggregateType,
			r.Kind,
			[]byte(r.Data),
			r.Timestamp,
		)
		if err != nil {
			return classifyPostgresError(r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var data []byte
	if err := rows.Scan(&r.AggregateID, &r.AggregateType, &r.Version, &r.EventID, &r.Kind, &data, &r.Timestamp); err != nil {
		return Record{}, fmt.Errorf("failed to scan event: %w", err)
	}
	r.Data = data
	return r, nil
}

func classifyPostgresError(r Record, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s version %d", ErrConflict, r.AggregateID, r.Version)
	}
	return fmt.Errorf("failed to insert event %s: %w", r.EventID, err)
}

// Delete removes all events of an aggregate
func (es *PostgresEventStore) Delete(ctx context.Context, aggregateID string) error {
	_, err := es.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE aggregate_id = $1`, pq.QuoteIdentifier(es.table)),
		aggregateID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// GetAllRecords returns every stored record in insertion order (for replay).
// seq comes from a sequence, so it does not depend on writer clocks.
func (es *PostgresEventStore) GetAllRecords(ctx context.Context) ([]Record, error) {
	rows, err := es.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT aggregate_id, aggregate_type, version, event_id, kind, data, created_at
		 FROM %s
		 ORDER BY seq ASC`, pq.QuoteIdentifier(es.table)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
