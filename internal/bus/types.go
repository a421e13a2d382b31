package bus

import "context"

// InboundMessage represents a message received from the messaging platform.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	MessageID string            `json:"message_id,omitempty"`
	Content   string            `json:"content"`
	Kind      string            `json:"kind,omitempty"` // "text", "interactive", "audio"
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a reply to be delivered to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MessageRouter abstracts inbound/outbound message routing between the
// gateway, the decision engine consumer, and the delivery channels.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
