package chat

import (
	"context"
	"errors"
	"fmt"

	"courier/cmd/identity"
)

// StartConversation finds or creates the one-to-one conversation between the
// caller and otherID. The other user must exist; the pair is canonical, so
// both orderings land on the same conversation.
func (s *Service) StartConversation(ctx context.Context, userID, otherID string) (*Conversation, bool, error) {
	if userID == otherID || userID == "" || otherID == "" {
		return nil, false, fmt.Errorf("start: %w", ErrInvalidParticipants)
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, false, fmt.Errorf("start: %w: unknown user %s", ErrInvalidParticipants, otherID)
		}
		return nil, false, err
	}
	return s.store.FindOrCreateConversation(ctx, userID, otherID, s.now().UTC())
}

// Conversations lists the caller's conversations, newest activity first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	return s.store.ConversationsForUser(ctx, userID)
}

// Conversation fetches a single conversation the caller participates in.
func (s *Service) Conversation(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("conversation: %w", ErrNotAuthorized)
	}
	return conv, nil
}

// Messages returns a history window for a conversation the caller
// participates in.
func (s *Service) Messages(ctx context.Context, conversationID, userID string, page Page) ([]Message, error) {
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("messages: %w: %s is not a participant", ErrNotAuthorized, userID)
	}
	return s.store.MessagesByConversation(ctx, conversationID, page)
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.store.IsParticipant(ctx, conversationID, userID)
}
