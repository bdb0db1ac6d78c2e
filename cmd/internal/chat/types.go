package chat

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the message payload.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Status is the delivery status of a message.
// Transitions are monotonic: sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return statusRank[s] != 0 }

// After reports whether s is a strict forward move from o.
func (s Status) After(o Status) bool {
	return statusRank[s] != 0 && statusRank[o] != 0 && statusRank[s] > statusRank[o]
}

// Max message text length (runes). Matches the wire-side frame budget.
const MaxTextChars = 4000

// Image describes an already-uploaded image attachment.
// Upload/storage of the bytes is outside the delivery core.
type Image struct {
	URL      string
	Filename string
	Size     int64
}

// Message is a single message inside a two-party conversation.
// Exactly one of Text / Image is set, matching Kind. Status transitions are
// the only mutation after creation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string

	Kind  Kind
	Text  string
	Image *Image

	Status      Status
	SentAt      time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// Validate enforces the payload invariant: exactly one of text/image, and
// kind matches which payload is present.
func (m *Message) Validate() error {
	hasText := strings.TrimSpace(m.Text) != ""
	hasImage := m.Image != nil && strings.TrimSpace(m.Image.URL) != ""

	switch {
	case hasText && hasImage:
		return fmt.Errorf("%w: both text and image present", ErrInvalidMessage)
	case !hasText && !hasImage:
		return fmt.Errorf("%w: neither text nor image present", ErrInvalidMessage)
	case m.Kind == KindText && !hasText:
		return fmt.Errorf("%w: kind=text without text", ErrInvalidMessage)
	case m.Kind == KindImage && !hasImage:
		return fmt.Errorf("%w: kind=image without image", ErrInvalidMessage)
	case m.Kind != KindText && m.Kind != KindImage:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}

	if hasText && len([]rune(m.Text)) > MaxTextChars {
		return fmt.Errorf("%w: text too long (max %d chars)", ErrInvalidMessage, MaxTextChars)
	}
	return nil
}

// Conversation is a two-party messaging thread.
// The participant set has exactly two members for the conversation's lifetime.
type Conversation struct {
	ID           string
	Participants [2]string

	LastMessageID string
	LastMessageAt *time.Time

	// Unread maps participant id -> count of messages not yet read by them.
	Unread map[string]int

	CreatedAt time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// pairKey returns the participant pair in canonical (sorted) order so that
// {A,B} and {B,A} address the same conversation.
func pairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
