// Package llm provides the abstraction over external language-model
// services. Providers handle API communication and nothing else: retry
// policy, prompting, and schema validation belong to the callers.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    Role
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// Provider is the capability contract for an external model service:
// given messages it returns one candidate response or fails. Providers
// implement no retry or backoff of their own; callers that need
// bounded retries (the distiller, the execution agent) implement them
// at their own layer.
type Provider interface {
	// Complete sends messages to the model and returns the full
	// response. Blocking; honors ctx cancellation and deadlines.
	Complete(ctx context.Context, messages []*Message) (*Message, error)

	// GetModel returns the model name being used.
	GetModel() string
}
