package models

import "time"

// Conversation is one persisted multi-turn exchange under a single identity
// and session.
type Conversation struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Turn    `json:"messages"`
}

// ConversationSummary is metadata-only listing of a conversation.
type ConversationSummary struct {
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}
