package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/infrastructure/store"
	"github.com/example/slashtodo/internal/readmodel"
)

const DefaultMaxAttempts = 3

var (
	ErrTodoNotFound     = errors.New("todo not found")
	ErrShortCodeTaken   = errors.New("short code already in use")
	ErrInvalidShortCode = errors.New("short code is required")
	ErrEmptyText        = errors.New("todo text is required")
)

// Lookup resolves a short code within a conversation to a todo id
type Lookup interface {
	BySlackConversationIDAndShortCode(ctx context.Context, slackConversationID, shortCode string) (string, bool, error)
}

type Handler struct {
	repo        *todo.Repository
	lookup      Lookup
	readStore   store.ReadStoreInterface
	maxAttempts int
	newID       func() string
}

func NewHandler(repo *todo.Repository, lookup Lookup, readStore store.ReadStoreInterface) *Handler {
	return &Handler{
		repo:        repo,
		lookup:      lookup,
		readStore:   readStore,
		maxAttempts: DefaultMaxAttempts,
		newID:       uuid.NewString,
	}
}

// WithMaxAttempts bounds how often a conflicting save is reloaded and retried
func (h *Handler) WithMaxAttempts(n int) *Handler {
	if n > 0 {
		h.maxAttempts = n
	}
	return h
}

// AddTodo creates a todo under a short code that is free in the conversation
func (h *Handler) AddTodo(ctx context.Context, cmd AddTodo) (*todo.Todo, error) {
	shortCode := normalizeShortCode(cmd.ShortCode)
	if shortCode == "" {
		return nil, ErrInvalidShortCode
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	_, taken, err := h.lookup.BySlackConversationIDAndShortCode(ctx, cmd.SlackConversationID, shortCode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", shortCode, err)
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrShortCodeTaken, shortCode)
	}

	t, err := todo.Add(h.newID(), text, cmd.SlackConversationID, shortCode, todo.Context{
		TeamID: cmd.TeamID,
		UserID: cmd.UserID,
	})
	if err != nil {
		return nil, err
	}
	if err := h.repo.Save(ctx, t); err != nil {
		return nil, err
	}

	// A concurrent add may have won the code between the check and the save;
	// the lookup keeps the first todo, so withdraw ours.
	owner, found, err := h.lookup.BySlackConversationIDAndShortCode(ctx, cmd.SlackConversationID, shortCode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", shortCode, err)
	}
	if found && owner != t.ID() {
		log.Printf("[Command] Short code %s was taken by %s concurrently, withdrawing %s", shortCode, owner, t.ID())
		if err := t.Remove(true); err != nil {
			return nil, err
		}
		if err := h.repo.Save(ctx, t); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrShortCodeTaken, shortCode)
	}
	return t, nil
}

func (h *Handler) TickTodo(ctx context.Context, cmd TickTodo) (*todo.Todo, error) {
	return h.update(ctx, cmd.Target, (*todo.Todo).Tick)
}

func (h *Handler) UntickTodo(ctx context.Context, cmd UntickTodo) (*todo.Todo, error) {
	return h.update(ctx, cmd.Target, (*todo.Todo).Untick)
}

func (h *Handler) ClaimTodo(ctx context.Context, cmd ClaimTodo) (*todo.Todo, error) {
	return h.update(ctx, cmd.Target, func(t *todo.Todo) error { return t.Claim(cmd.Force) })
}

func (h *Handler) FreeTodo(ctx context.Context, cmd FreeTodo) (*todo.Todo, error) {
	return h.update(ctx, cmd.Target, func(t *todo.Todo) error { return t.Free(cmd.Force) })
}

func (h *Handler) RemoveTodo(ctx context.Context, cmd RemoveTodo) (*todo.Todo, error) {
	return h.update(ctx, cmd.Target, func(t *todo.Todo) error { return t.Remove(cmd.Force) })
}

// PurgeTodo hard-deletes the history and drops the read rows directly,
// since no event is emitted for it.
func (h *Handler) PurgeTodo(ctx context.Context, cmd PurgeTodo) error {
	id, key, err := h.resolve(ctx, cmd.Target)
	if err != nil {
		return err
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return err
	}
	if h.readStore == nil {
		return nil
	}
	if err := h.readStore.DeleteTodo(ctx, id); err != nil {
		return err
	}
	return h.readStore.DeleteLookup(ctx, key)
}

// update runs load, mutate and save, reloading on a version conflict.
// Any other failure is returned as is.
func (h *Handler) update(ctx context.Context, target Target, mutate func(*todo.Todo) error) (*todo.Todo, error) {
	id, _, err := h.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		t, found, err := h.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
		}

		t.SetContext(todo.Context{TeamID: target.TeamID, UserID: target.UserID})
		if err := mutate(t); err != nil {
			return nil, err
		}

		err = h.repo.Save(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= h.maxAttempts {
			return nil, err
		}
		log.Printf("[Command] Conflict on %s (attempt %d/%d), reloading", id, attempt, h.maxAttempts)
	}
}

func (h *Handler) resolve(ctx context.Context, target Target) (string, readmodel.TodoLookupKey, error) {
	key := readmodel.TodoLookupKey{
		SlackConversationID: target.SlackConversationID,
		ShortCode:           normalizeShortCode(target.ShortCode),
	}
	if key.ShortCode == "" {
		return "", key, ErrInvalidShortCode
	}

	id, found, err := h.lookup.BySlackConversationIDAndShortCode(ctx, key.SlackConversationID, key.ShortCode)
	if err != nil {
		return "", key, fmt.Errorf("failed to look up %s: %w", key.ShortCode, err)
	}
	if !found {
		return "", key, fmt.Errorf("%w: %s", ErrTodoNotFound, key.ShortCode)
	}
	return id, key, nil
}

func normalizeShortCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
