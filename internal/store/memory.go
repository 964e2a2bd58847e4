package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ktulhu/pkg/types"
)

// MemoryStore is an in-process Store used by tests and one-shot
// (chat-less) requests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]types.Message
	chats    map[string]types.Chat
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]types.Message),
		chats:    make(map[string]types.Chat),
	}
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

func (s *MemoryStore) ListMessagesForChat(_ context.Context, chatID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out, nil
}

func (s *MemoryStore) SaveChat(_ context.Context, chat *types.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.ID] = *chat
	return nil
}

func (s *MemoryStore) LoadChat(_ context.Context, chatID string) (*types.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return &c, nil
}

func (s *MemoryStore) TouchChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	c, ok := s.chats[chatID]
	if !ok {
		c = types.Chat{ID: chatID, CreatedAt: now}
	}
	c.UpdatedAt = now
	s.chats[chatID] = c
	return nil
}
