// Package store holds conversation state for the generation pipeline.
// The worker persists assistant replies through this contract regardless
// of whether the client is still connected.
package store

import (
	"context"

	"ktulhu/pkg/types"
)

// Store is the persistence contract the core requires of the
// surrounding application. Messages returned by ListMessagesForChat are
// in chronological order.
type Store interface {
	SaveMessage(ctx context.Context, msg *types.Message) error
	ListMessagesForChat(ctx context.Context, chatID string) ([]types.Message, error)
	SaveChat(ctx context.Context, chat *types.Chat) error
	LoadChat(ctx context.Context, chatID string) (*types.Chat, error)
	// TouchChat bumps the chat's updated-at timestamp, creating the
	// chat row when it does not exist yet.
	TouchChat(ctx context.Context, chatID string) error
}
