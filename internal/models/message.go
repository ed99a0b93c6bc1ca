package models

import (
	"fmt"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser   Role = "user"
	RoleClone  Role = "clone"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleClone, RoleSystem:
		return true
	}
	return false
}

// MetadataLocal marks messages that exist only in the current view
const MetadataLocal = "local"

// Message is one entry in a conversation. Messages are never edited
// once appended.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// IsLocal reports whether the message was synthesized client-side
func (m *Message) IsLocal() bool {
	if m.Metadata == nil {
		return false
	}
	local, _ := m.Metadata[MetadataLocal].(bool)
	return local
}

// Validate checks the fields a rendered message cannot do without
func (m *Message) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("missing id")
	case !m.Role.Valid():
		return fmt.Errorf("invalid role %q", m.Role)
	case m.Content == "":
		return fmt.Errorf("missing content")
	}
	return nil
}

// Conversation is a named thread between a user and one clone
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CloneID   string    `json:"clone_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateConversationRequest is the body of a conversation create call
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the body of a send call
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ChatResponse is the exchange returned by a send: exactly one user
// message and one clone message
type ChatResponse struct {
	UserMessage  *Message `json:"user_message"`
	CloneMessage *Message `json:"clone_message"`
}

// Validate reports the first missing or malformed half of the exchange
func (r *ChatResponse) Validate() error {
	if r == nil {
		return fmt.Errorf("empty response")
	}
	if r.UserMessage == nil {
		return fmt.Errorf("missing user_message")
	}
	if err := r.UserMessage.Validate(); err != nil {
		return fmt.Errorf("user_message: %w", err)
	}
	if r.CloneMessage == nil {
		return fmt.Errorf("missing clone_message")
	}
	if err := r.CloneMessage.Validate(); err != nil {
		return fmt.Errorf("clone_message: %w", err)
	}
	return nil
}
