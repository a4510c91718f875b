package chat

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks the delivery state of a message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Message is a single entry in a conversation timeline.
//
// IsTyping marks the placeholder standing in for an assistant reply that has
// not arrived yet; at most one such placeholder exists per timeline. IsNew
// marks a freshly arrived assistant reply that is still eligible for the
// progressive reveal; it is cleared after the reveal runs and never set again.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	IsTyping  bool      `json:"is_typing,omitempty"`
	IsNew     bool      `json:"is_new,omitempty"`
}

// NewUserMessage builds the optimistic echo of a submitted prompt. It is
// displayed as sent before any network round trip.
func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Status:    StatusSent,
	}
}

// NewTypingPlaceholder builds the provisional assistant message shown while a
// reply is pending. It is reconciled in place exactly once.
func NewTypingPlaceholder() Message {
	return Message{
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Status:    StatusPending,
		IsTyping:  true,
	}
}
