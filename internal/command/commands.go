package command

// Target names a todo the way a user types it
type Target struct {
	TeamID              string `json:"team_id"`
	UserID              string `json:"user_id"`
	SlackConversationID string `json:"slack_conversation_id"`
	ShortCode           string `json:"short_code"`
}

type AddTodo struct {
	TeamID              string `json:"team_id"`
	UserID              string `json:"user_id"`
	SlackConversationID string `json:"slack_conversation_id"`
	ShortCode           string `json:"short_code"`
	Text                string `json:"text"`
}

type TickTodo struct {
	Target
}

type UntickTodo struct {
	Target
}

type ClaimTodo struct {
	Target
	Force bool `json:"force"`
}

type FreeTodo struct {
	Target
	Force bool `json:"force"`
}

type RemoveTodo struct {
	Target
	Force bool `json:"force"`
}

// PurgeTodo deletes a todo's history outright
type PurgeTodo struct {
	Target
}
