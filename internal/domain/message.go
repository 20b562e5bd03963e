package domain

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one conversation turn. The thread/message store itself is an
// external collaborator; the core only reads messages as grounding context
// for query formulation and section generation.
type Message struct {
	ID        string
	ThreadID  string
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}
