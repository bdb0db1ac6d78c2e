package chat

import (
	"context"
	"errors"
	"fmt"

	"courier/cmd/identity"
	"courier/cmd/identity/ids"
)

// SendInput carries one outbound message through the pipeline.
type SendInput struct {
	SenderID       string
	ConversationID string
	Kind           Kind
	Text           string
	Image          *Image
}

// Send runs the delivery pipeline: authorize the sender against the
// conversation, validate the payload, persist message and aggregate in one
// step, fan out to participants, then kick the delivered transition off the
// hot path when the recipient is online.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	conv, err := s.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, fmt.Errorf("send: %w: %s is not a participant", ErrNotAuthorized, in.SenderID)
	}

	now := s.now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	msg := &Message{
		ID:             id,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Kind:           in.Kind,
		Text:           in.Text,
		Image:          in.Image,
		Status:         StatusSent,
		SentAt:         now,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("send: append: %w", err)
	}

	sender := identity.User{ID: in.SenderID}
	if u, err := s.users.GetByID(ctx, in.SenderID); err == nil {
		sender = u
	} else {
		s.log.Warn("chat.send.sender_lookup_fail", "user_id", in.SenderID, "err", err)
	}

	s.events.MessageReceived(conv, msg, sender)

	recipient := conv.Other(in.SenderID)
	if recipient != "" && s.events.Online(recipient) {
		go s.markDeliveredAsync(msg.ID)
	}

	return msg, nil
}

// markDeliveredAsync applies the sent -> delivered transition on its own
// deadline, detached from the request that produced the message.
func (s *Service) markDeliveredAsync(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
	defer cancel()

	at := s.now().UTC()
	updated, err := s.store.UpdateMessageStatus(ctx, messageID, StatusDelivered, at)
	if err != nil {
		// Already read, or gone: nothing to propagate.
		if !errors.Is(err, ErrInvalidTransition) {
			s.log.Warn("chat.deliver.fail", "message_id", messageID, "err", err)
		}
		return
	}
	s.events.MessageStatusUpdated(updated.ConversationID, updated.ID, StatusDelivered, at)
}
