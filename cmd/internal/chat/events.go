package chat

import (
	"time"

	"courier/cmd/identity"
)

// Events is the outbound edge of the delivery core. The realtime layer
// implements it; the service never touches a connection directly.
type Events interface {
	// MessageReceived fans a freshly persisted message out to the
	// conversation participants.
	MessageReceived(conv *Conversation, msg *Message, sender identity.User)

	// MessageStatusUpdated notifies participants of a status transition.
	MessageStatusUpdated(conversationID, messageID string, status Status, at time.Time)

	// MessageRead notifies participants that readBy has read the message.
	MessageRead(conversationID, messageID, readBy string)

	// Online reports whether the user currently has a live session.
	Online(userID string) bool
}

// NopEvents discards all notifications. Useful when the service runs
// without a realtime layer attached.
type NopEvents struct{}

func (NopEvents) MessageReceived(*Conversation, *Message, identity.User)         {}
func (NopEvents) MessageStatusUpdated(string, string, Status, time.Time)         {}
func (NopEvents) MessageRead(string, string, string)                             {}
func (NopEvents) Online(string) bool                                             { return false }
