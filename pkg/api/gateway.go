package api

import (
	"context"
)

// Channel defines the standardized lifecycle interface for communication platforms.
type Channel interface {
	ID() string
	Start(ctx ChannelContext) error
	Stop() error
}

// ChannelContext provides the interface for a Channel implementation to
// communicate back with the Gateway core.
type ChannelContext interface {
	// Converse runs one turn for the given session and returns the reply.
	Converse(ctx context.Context, session SessionContext, message string, todos []TodoItem) ChatResponse
}

// SessionContext encapsulates identity and routing information for a specific
// conversation unit on a specific communication channel.
type SessionContext struct {
	ChannelID string // Identifier of the channel that originated the session (e.g., "telegram")
	UserID    string // Platform-specific unique identifier for the user
	ChatID    string // Platform-specific identifier for the chat (may match UserID for DMs)
	Username  string // Display name or nickname of the user as provided by the platform
}

// Key is the conversation-state key for this session.
func (s SessionContext) Key() string {
	if s.ChatID == "" {
		return ""
	}
	return s.ChannelID + ":" + s.ChatID
}
