package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory ConversationStore for tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
	flags    map[string]Flags
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]Message),
		flags:    make(map[string]Flags),
	}
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = append(s.messages[conversationID], Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (s *MemoryStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) AllMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return s.RecentMessages(ctx, conversationID, 0)
}

func (s *MemoryStore) Flags(ctx context.Context, conversationID string) (Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.flags[conversationID]; ok {
		return f, nil
	}
	return Flags{FunnelState: FunnelNew}, nil
}

func (s *MemoryStore) SetFlags(ctx context.Context, conversationID string, flags Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[conversationID] = flags
	return nil
}

func (s *MemoryStore) Close() error { return nil }
