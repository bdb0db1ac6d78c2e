// Package v1 defines the Courier Realtime Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeConversationJoin joins a conversation room (client -> server) and is echoed back.
	TypeConversationJoin = "join_conversation"

	// TypeSendMessage requests delivery of a new message (client -> server).
	TypeSendMessage = "send_message"
	// TypeTypingStart marks the sender as typing in a conversation (client -> server).
	TypeTypingStart = "typing_start"
	// TypeTypingStop clears the sender's typing state (client -> server).
	TypeTypingStop = "typing_stop"
	// TypeMarkAsRead acknowledges a message as read (client -> server).
	TypeMarkAsRead = "mark_as_read"

	// TypeMessageReceived broadcasts an accepted message (server -> conversation participants).
	TypeMessageReceived = "message_received"
	// TypeMessageStatusUpdated broadcasts a delivery-status transition (server -> conversation).
	TypeMessageStatusUpdated = "message_status_updated"
	// TypeMessageRead broadcasts a read acknowledgement (server -> conversation).
	TypeMessageRead = "message_read"
	// TypeUserTyping broadcasts typing-state changes (server -> conversation).
	TypeUserTyping = "user_typing"
	// TypeUserStatus broadcasts presence changes (server -> all sessions).
	TypeUserStatus = "user_status"

	// TypeError is a generic error envelope (server -> offending client only).
	TypeError = "error"
)

// Message kinds (wire-stable).
const (
	KindText  = "text"
	KindImage = "image"
)

// Message statuses (wire-stable, monotonic sent -> delivered -> read).
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Presence statuses carried by TypeUserStatus.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeConversationJoin,
		TypeSendMessage,
		TypeTypingStart,
		TypeTypingStop,
		TypeMarkAsRead,
		TypeMessageReceived,
		TypeMessageStatusUpdated,
		TypeMessageRead,
		TypeUserTyping,
		TypeUserStatus,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// ConversationJoinPayload requests membership in a conversation room.
type ConversationJoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

// ImagePayload describes an already-uploaded image attachment.
type ImagePayload struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// SendMessagePayload requests delivery of a message into a conversation.
// Exactly one of Text / Image must be present, matching Kind.
type SendMessagePayload struct {
	ConversationID string        `json:"conversation_id"`
	Kind           string        `json:"kind"`
	Text           string        `json:"text,omitempty"`
	Image          *ImagePayload `json:"image,omitempty"`
}

// TypingPayload marks the start or end of typing in a conversation.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
}

// MarkAsReadPayload acknowledges a single message as read.
type MarkAsReadPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// MessagePayload is the denormalized message representation broadcast to clients.
type MessagePayload struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	SenderName     string        `json:"sender_name,omitempty"`
	SenderAvatar   string        `json:"sender_avatar_url,omitempty"`
	Kind           string        `json:"kind"`
	Text           string        `json:"text,omitempty"`
	Image          *ImagePayload `json:"image,omitempty"`
	Status         string        `json:"status"`
	SentAt         time.Time     `json:"sent_at"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
}

// MessageReceivedPayload is broadcast when a new message is accepted.
type MessageReceivedPayload struct {
	ConversationID string         `json:"conversation_id"`
	Message        MessagePayload `json:"message"`
}

// MessageStatusUpdatedPayload is broadcast on a delivery-status transition.
type MessageStatusUpdatedPayload struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageReadPayload is broadcast when a participant read-acknowledges a message.
type MessageReadPayload struct {
	MessageID      string `json:"message_id"`
	ReadBy         string `json:"read_by"`
	ConversationID string `json:"conversation_id"`
}

// UserTypingPayload is broadcast when a participant starts or stops typing.
type UserTypingPayload struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// UserStatusPayload is broadcast to every connected session on presence changes.
type UserStatusPayload struct {
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is a generic error response payload, sent only to the requester.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
