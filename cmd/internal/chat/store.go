package chat

import (
	"context"
	"time"
)

// Page selects a window of conversation history.
// Before is exclusive; zero means "from the latest". Results are returned in
// ascending sentAt order.
type Page struct {
	Limit  int
	Before time.Time
}

// Store persists conversations and messages.
//
// Requirements:
//   - AppendMessage persists the message and applies the conversation
//     aggregate (last-message pointer, unread increments) atomically: either
//     both durable effects happen or neither.
//   - UpdateMessageStatus is guarded: it applies only strict forward moves
//     and backfills deliveredAt when jumping straight to read, returning
//     ErrInvalidTransition otherwise. The guard must hold under concurrency.
//   - FindOrCreateConversation must not create duplicates for the same
//     unordered pair under concurrent calls.
//   - MarkConversationRead transitions every sent/delivered message not sent
//     by reader to read AND resets reader's unread counter in one atomic
//     operation, returning the affected message ids.
type Store interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessageStatus(ctx context.Context, id string, to Status, at time.Time) (*Message, error)
	MessagesByConversation(ctx context.Context, conversationID string, page Page) ([]Message, error)

	GetConversation(ctx context.Context, id string) (*Conversation, error)
	FindConversation(ctx context.Context, userA, userB string) (*Conversation, error)
	FindOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (*Conversation, bool, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error)
	ConversationsForUser(ctx context.Context, userID string) ([]Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	Close() error
}
