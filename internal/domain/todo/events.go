package todo

import "github.com/example/slashtodo/internal/domain/event"

const (
	EventTodoAdded    = "TodoAdded"
	EventTodoTicked   = "TodoTicked"
	EventTodoUnticked = "TodoUnticked"
	EventTodoClaimed  = "TodoClaimed"
	EventTodoFreed    = "TodoFreed"
	EventTodoRemoved  = "TodoRemoved"
)

// Header is the part shared by every todo event. It carries the conversation
// context so read models can index without loading the aggregate.
type Header struct {
	event.Metadata
	TeamID              string `json:"team_id,omitempty"`
	SlackConversationID string `json:"slack_conversation_id"`
	ShortCode           string `json:"short_code"`
}

// Event is implemented by the closed set of todo events below
type Event interface {
	event.Event
	TodoHeader() Header
}

func (h Header) TodoHeader() Header { return h }

// TodoAdded is emitted when a todo is created
type TodoAdded struct {
	Header
	Text string `json:"text"`
}

// TodoTicked is emitted when a todo is marked done
type TodoTicked struct {
	Header
}

// TodoUnticked is emitted when a done todo is reopened
type TodoUnticked struct {
	Header
}

// TodoClaimed is emitted when the acting user takes ownership
type TodoClaimed struct {
	Header
}

// TodoFreed is emitted when a claim is released
type TodoFreed struct {
	Header
}

// TodoRemoved is emitted when a todo is removed
type TodoRemoved struct {
	Header
}

func (TodoAdded) Kind() string    { return EventTodoAdded }
func (TodoTicked) Kind() string   { return EventTodoTicked }
func (TodoUnticked) Kind() string { return EventTodoUnticked }
func (TodoClaimed) Kind() string  { return EventTodoClaimed }
func (TodoFreed) Kind() string    { return EventTodoFreed }
func (TodoRemoved) Kind() string  { return EventTodoRemoved }
