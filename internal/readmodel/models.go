package readmodel

import "time"

// TodoReadModel is the read model for a todo in a conversation
type TodoReadModel struct {
	ID                  string    `json:"id"`
	TeamID              string    `json:"team_id,omitempty"`
	SlackConversationID string    `json:"slack_conversation_id"`
	ShortCode           string    `json:"short_code"`
	Text                string    `json:"text"`
	IsTicked            bool      `json:"is_ticked"`
	ClaimedByUserID     string    `json:"claimed_by_user_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	// Version is the number of events projected so far. Events with a lower
	// OriginalVersion are redeliveries and are skipped.
	Version int `json:"version"`
}

// TodoLookupKey addresses a todo by what users type
type TodoLookupKey struct {
	SlackConversationID string `json:"slack_conversation_id"`
	ShortCode           string `json:"short_code"`
}
