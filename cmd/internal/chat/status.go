package chat

import (
	"context"
	"errors"
	"fmt"
)

// MarkDelivered records a recipient acknowledgement for one message. The
// sender cannot acknowledge their own message. A repeated delivered ack is a
// silent no-op; a backward move (message already read) is rejected.
func (s *Service) MarkDelivered(ctx context.Context, messageID, byUserID string) (*Message, error) {
	if _, err := s.authorizeAck(ctx, messageID, byUserID); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	updated, err := s.store.UpdateMessageStatus(ctx, messageID, StatusDelivered, at)
	if errors.Is(err, ErrInvalidTransition) {
		return s.resolveStalledAck(ctx, messageID, StatusDelivered)
	}
	if err != nil {
		return nil, err
	}

	s.events.MessageStatusUpdated(updated.ConversationID, updated.ID, StatusDelivered, at)
	return updated, nil
}

// MarkRead records a read acknowledgement for one message, backfilling the
// delivered timestamp when the delivered ack never arrived. A repeated read
// ack is a silent no-op.
func (s *Service) MarkRead(ctx context.Context, messageID, byUserID string) (*Message, error) {
	if _, err := s.authorizeAck(ctx, messageID, byUserID); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	updated, err := s.store.UpdateMessageStatus(ctx, messageID, StatusRead, at)
	if errors.Is(err, ErrInvalidTransition) {
		return s.resolveStalledAck(ctx, messageID, StatusRead)
	}
	if err != nil {
		return nil, err
	}

	s.events.MessageRead(updated.ConversationID, updated.ID, byUserID)
	return updated, nil
}

// MarkAllRead moves every unread message addressed to readerID in the
// conversation to read and resets the reader's unread counter, then emits one
// read event per affected message.
func (s *Service) MarkAllRead(ctx context.Context, conversationID, readerID string) ([]string, error) {
	ok, err := s.store.IsParticipant(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("mark_all_read: %w: %s is not a participant", ErrNotAuthorized, readerID)
	}

	at := s.now().UTC()
	affected, err := s.store.MarkConversationRead(ctx, conversationID, readerID, at)
	if err != nil {
		return nil, err
	}

	for _, id := range affected {
		s.events.MessageRead(conversationID, id, readerID)
	}
	return affected, nil
}

// resolveStalledAck decides what a refused store transition means for the
// requester: an ack the message already carries is acknowledged silently,
// anything else is a backward move and keeps the rejection. The status is
// re-read so a transition that raced this ack is judged on current state.
func (s *Service) resolveStalledAck(ctx context.Context, messageID string, to Status) (*Message, error) {
	current, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	return nil, fmt.Errorf("ack: %w: %s -> %s", ErrInvalidTransition, current.Status, to)
}

// authorizeAck resolves the message and rejects acknowledgements from
// non-participants and from the sender itself.
func (s *Service) authorizeAck(ctx context.Context, messageID, byUserID string) (*Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID == byUserID {
		return nil, fmt.Errorf("ack: %w: sender cannot acknowledge own message", ErrNotAuthorized)
	}
	ok, err := s.store.IsParticipant(ctx, msg.ConversationID, byUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ack: %w: %s is not a participant", ErrNotAuthorized, byUserID)
	}
	return msg, nil
}
