package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/slashtodo/internal/readmodel"
)

const createReadTables = `
CREATE TABLE IF NOT EXISTS read_todos (
	id                    TEXT PRIMARY KEY,
	team_id               TEXT        NOT NULL DEFAULT '',
	slack_conversation_id TEXT        NOT NULL,
	short_code            TEXT        NOT NULL,
	text                  TEXT        NOT NULL,
	is_ticked             BOOLEAN     NOT NULL DEFAULT FALSE,
	claimed_by_user_id    TEXT        NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL,
	version               INTEGER     NOT NULL
);
CREATE INDEX IF NOT EXISTS read_todos_conversation_idx ON read_todos (slack_conversation_id);
CREATE TABLE IF NOT EXISTS read_todo_lookup (
	slack_conversation_id TEXT NOT NULL,
	short_code            TEXT NOT NULL,
	todo_id               TEXT NOT NULL,
	PRIMARY KEY (slack_conversation_id, short_code)
)`

const selectTodoColumns = `SELECT id, team_id, slack_conversation_id, short_code, text, is_ticked,
	claimed_by_user_id, created_at, updated_at, version FROM read_todos`

// PostgresReadStore implements ReadStoreInterface using PostgreSQL
type PostgresReadStore struct {
	db *sql.DB
}

// NewPostgresReadStore creates a new PostgreSQL-based read store
func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// EnsureSchema creates the read model tables if they do not exist
func (rs *PostgresReadStore) EnsureSchema(ctx context.Context) error {
	if _, err := rs.db.ExecContext(ctx, createReadTables); err != nil {
		return fmt.Errorf("failed to create read tables: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*readmodel.TodoReadModel, error) {
	var m readmodel.TodoReadModel
	err := row.Scan(&m.ID, &m.TeamID, &m.SlackConversationID, &m.ShortCode, &m.Text, &m.IsTicked,
		&m.ClaimedByUserID, &m.CreatedAt, &m.UpdatedAt, &m.Version)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTodo(ctx context.Context, db execer, m *readmodel.TodoReadModel) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO read_todos (id, team_id, slack_conversation_id, short_code, text, is_ticked,
			claimed_by_user_id, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			slack_conversation_id = EXCLUDED.slack_conversation_id,
			short_code = EXCLUDED.short_code,
			text = EXCLUDED.text,
			is_ticked = EXCLUDED.is_ticked,
			claimed_by_user_id = EXCLUDED.claimed_by_user_id,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version`,
		m.ID, m.TeamID, m.SlackConversationID, m.ShortCode, m.Text, m.IsTicked,
		m.ClaimedByUserID, m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert todo %s: %w", m.ID, err)
	}
	return nil
}

func (rs *PostgresReadStore) PutTodo(ctx context.Context, m *readmodel.TodoReadModel) error {
	return upsertTodo(ctx, rs.db, m)
}

func (rs *PostgresReadStore) GetTodo(ctx context.Context, id string) (*readmodel.TodoReadModel, bool, error) {
	m, err := scanTodo(rs.db.QueryRowContext(ctx, selectTodoColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get todo %s: %w", id, err)
	}
	return m, true, nil
}

// UpdateTodo locks the row, applies updateFn and writes it back in one transaction
func (rs *PostgresReadStore) UpdateTodo(ctx context.Context, id string, updateFn func(m *readmodel.TodoReadModel)) (bool, error) {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := scanTodo(tx.QueryRowContext(ctx, selectTodoColumns+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get todo %s: %w", id, err)
	}

	updateFn(m)
	if err := upsertTodo(ctx, tx, m); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit todo %s: %w", id, err)
	}
	return true, nil
}

func (rs *PostgresReadStore) DeleteTodo(ctx context.Context, id string) error {
	if _, err := rs.db.ExecContext(ctx, `DELETE FROM read_todos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete todo %s: %w", id, err)
	}
	return nil
}

func (rs *PostgresReadStore) ListTodos(ctx context.Context, slackConversationID string) ([]*readmodel.TodoReadModel, error) {
	rows, err := rs.db.QueryContext(ctx,
		selectTodoColumns+` WHERE slack_conversation_id = $1 ORDER BY short_code ASC`,
		slackConversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []*readmodel.TodoReadModel
	for rows.Next() {
		m, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, m)
	}
	return todos, rows.Err()
}

// PutLookup inserts the key, or touches it when it already maps to todoID
func (rs *PostgresReadStore) PutLookup(ctx context.Context, key readmodel.TodoLookupKey, todoID string) error {
	res, err := rs.db.ExecContext(ctx, `
		INSERT INTO read_todo_lookup (slack_conversation_id, short_code, todo_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (slack_conversation_id, short_code) DO UPDATE SET todo_id = EXCLUDED.todo_id
		WHERE read_todo_lookup.todo_id = EXCLUDED.todo_id`,
		key.SlackConversationID, key.ShortCode, todoID,
	)
	if err != nil {
		return fmt.Errorf("failed to put lookup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to put lookup: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrLookupTaken, key.SlackConversationID, key.ShortCode)
	}
	return nil
}

func (rs *PostgresReadStore) GetLookup(ctx context.Context, key readmodel.TodoLookupKey) (string, bool, error) {
	var todoID string
	err := rs.db.QueryRowContext(ctx,
		`SELECT todo_id FROM read_todo_lookup WHERE slack_conversation_id = $1 AND short_code = $2`,
		key.SlackConversationID, key.ShortCode,
	).Scan(&todoID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get lookup: %w", err)
	}
	return todoID, true, nil
}

func (rs *PostgresReadStore) DeleteLookup(ctx context.Context, key readmodel.TodoLookupKey) error {
	_, err := rs.db.ExecContext(ctx,
		`DELETE FROM read_todo_lookup WHERE slack_conversation_id = $1 AND short_code = $2`,
		key.SlackConversationID, key.ShortCode,
	)
	if err != nil {
		return fmt.Errorf("failed to delete lookup: %w", err)
	}
	return nil
}

func (rs *PostgresReadStore) Reset(ctx context.Context) error {
	if _, err := rs.db.ExecContext(ctx, `TRUNCATE read_todos, read_todo_lookup`); err != nil {
		return fmt.Errorf("failed to reset read tables: %w", err)
	}
	return nil
}
