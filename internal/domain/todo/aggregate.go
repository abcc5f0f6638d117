package todo

import (
	"errors"
	"fmt"

	"github.com/example/slashtodo/internal/domain/aggregate"
	"github.com/example/slashtodo/internal/domain/event"
)

const AggregateType = "Todo"

var (
	ErrInvalidID            = errors.New("todo id is required")
	ErrMissingUser          = errors.New("acting user is required")
	ErrClaimedBySomeoneElse = errors.New("todo is claimed by someone else")
)

// ClaimedBySomeoneElseError is returned when an operation would override
// another user's claim without force.
type ClaimedBySomeoneElseError struct {
	ClaimedByUserID string
}

func (e *ClaimedBySomeoneElseError) Error() string {
	return fmt.Sprintf("%v: %s", ErrClaimedBySomeoneElse, e.ClaimedByUserID)
}

func (e *ClaimedBySomeoneElseError) Is(target error) bool { return target == ErrClaimedBySomeoneElse }

// Context identifies who is acting on the todo
type Context struct {
	TeamID string
	UserID string
}

// Todo is a claimable work item in a conversation
type Todo struct {
	aggregate.Root

	TeamID              string
	SlackConversationID string
	ShortCode           string
	Text                string
	IsRemoved           bool
	IsTicked            bool
	ClaimedByUserID     string

	// ctx is the actor for subsequent operations; it is not part of the state.
	ctx Context
}

// New returns an empty todo ready to be loaded from events
func New() *Todo {
	return &Todo{}
}

// Add creates a todo and raises TodoAdded
func Add(id, text, slackConversationID, shortCode string, ctx Context) (*Todo, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if ctx.UserID == "" {
		return nil, ErrMissingUser
	}

	t := New()
	t.SetID(id)
	t.ctx = ctx
	err := t.raise(TodoAdded{
		Header: Header{
			Metadata:            event.NewMetadata(id, t.Version(), ctx.UserID),
			TeamID:              ctx.TeamID,
			SlackConversationID: slackConversationID,
			ShortCode:           shortCode,
		},
		Text: text,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetContext sets the acting user for the following operations
func (t *Todo) SetContext(ctx Context) { t.ctx = ctx }

// Context returns the acting user
func (t *Todo) Context() Context { return t.ctx }

// LoadFromEvents implements aggregate.Aggregate
func (t *Todo) LoadFromEvents(events []event.Event) error {
	return t.Load(events, t.apply)
}

// IsClaimed reports whether any user holds the claim
func (t *Todo) IsClaimed() bool { return t.ClaimedByUserID != "" }

// Tick marks the todo done
func (t *Todo) Tick() error {
	if err := t.checkActor(); err != nil {
		return err
	}
	if t.IsRemoved || t.IsTicked {
		return nil
	}
	return t.raise(TodoTicked{Header: t.header()})
}

// Untick reopens a done todo
func (t *Todo) Untick() error {
	if err := t.checkActor(); err != nil {
		return err
	}
	if t.IsRemoved || !t.IsTicked {
		return nil
	}
	return t.raise(TodoUnticked{Header: t.header()})
}

// Claim makes the acting user the owner. A finished or removed todo
// cannot be claimed; force overrides another user's claim.
func (t *Todo) Claim(force bool) error {
	if err := t.checkActor(); err != nil {
		return err
	}
	if t.IsRemoved || t.IsTicked || t.ClaimedByUserID == t.ctx.UserID {
		return nil
	}
	if err := t.checkOwnership(force); err != nil {
		return err
	}
	return t.raise(TodoClaimed{Header: t.header()})
}

// Free releases the claim
func (t *Todo) Free(force bool) error {
	if err := t.checkActor(); err != nil {
		return err
	}
	if t.IsRemoved || !t.IsClaimed() {
		return nil
	}
	if err := t.checkOwnership(force); err != nil {
		return err
	}
	return t.raise(TodoFreed{Header: t.header()})
}

// Remove removes the todo. Removed is terminal.
func (t *Todo) Remove(force bool) error {
	if err := t.checkActor(); err != nil {
		return err
	}
	if t.IsRemoved {
		return nil
	}
	if err := t.checkOwnership(force); err != nil {
		return err
	}
	return t.raise(TodoRemoved{Header: t.header()})
}

func (t *Todo) checkActor() error {
	if t.ctx.UserID == "" {
		return ErrMissingUser
	}
	return nil
}

// checkOwnership fails when someone other than the actor holds the claim
func (t *Todo) checkOwnership(force bool) error {
	if force || !t.IsClaimed() || t.ClaimedByUserID == t.ctx.UserID {
		return nil
	}
	return &ClaimedBySomeoneElseError{ClaimedByUserID: t.ClaimedByUserID}
}

// header stamps metadata for the next event
func (t *Todo) header() Header {
	teamID := t.ctx.TeamID
	if teamID == "" {
		teamID = t.TeamID
	}
	return Header{
		Metadata:            event.NewMetadata(t.ID(), t.Version(), t.ctx.UserID),
		TeamID:              teamID,
		SlackConversationID: t.SlackConversationID,
		ShortCode:           t.ShortCode,
	}
}

func (t *Todo) raise(e Event) error {
	return t.Raise(e, t.apply)
}

// apply mutates state for one event
func (t *Todo) apply(e event.Event) error {
	switch ev := e.(type) {
	case TodoAdded:
		t.TeamID = ev.TeamID
		t.SlackConversationID = ev.SlackConversationID
		t.ShortCode = ev.ShortCode
		t.Text = ev.Text
	case TodoTicked:
		t.IsTicked = true
	case TodoUnticked:
		t.IsTicked = false
	case TodoClaimed:
		t.ClaimedByUserID = ev.UserID
	case TodoFreed:
		t.ClaimedByUserID = ""
	case TodoRemoved:
		t.IsRemoved = true
	default:
		return fmt.Errorf("unexpected event %T for %s", e, AggregateType)
	}
	return nil
}
