package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one turn of a chat-style generation request.
type Message struct {
	Role    Role
	Content string
}

// Client is a minimal text-generation interface to allow pluggable providers.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
