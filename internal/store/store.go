// Package store persists conversations: the message history and the
// per-conversation flags the onboarding flow reads and writes.
package store

import (
	"context"
	"time"
)

// Funnel states for the onboarding flow.
const (
	FunnelNew         = "new"
	FunnelGreeted     = "greeted"
	FunnelLinkOffered = "link_offered"
	FunnelConfirmed   = "confirmed"
)

// Message is one stored chat message.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	CreatedAt      time.Time
}

// Flags is the mutable per-conversation state.
type Flags struct {
	Greeted     bool
	FunnelState string
}

// ConversationStore persists messages and conversation flags.
type ConversationStore interface {
	// AppendMessage records a message at the end of a conversation.
	AppendMessage(ctx context.Context, conversationID, role, content string) error

	// RecentMessages returns up to limit most recent messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// AllMessages returns the full history, oldest first.
	AllMessages(ctx context.Context, conversationID string) ([]Message, error)

	// Flags returns the conversation flags. Unknown conversations get
	// zero-value flags with FunnelState = FunnelNew.
	Flags(ctx context.Context, conversationID string) (Flags, error)

	// SetFlags replaces the conversation flags.
	SetFlags(ctx context.Context, conversationID string, flags Flags) error

	Close() error
}
