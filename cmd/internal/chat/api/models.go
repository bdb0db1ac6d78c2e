package chatapi

import (
	"time"

	"courier/cmd/internal/chat"
)

type startConversationRequest struct {
	UserID string `json:"user_id"`
}

type sendMessageRequest struct {
	ConversationID string        `json:"conversation_id"`
	Kind           string        `json:"kind"`
	Text           string        `json:"text,omitempty"`
	Image          *imageRequest `json:"image,omitempty"`
}

type imageRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type imageResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type messageResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	Kind           string         `json:"kind"`
	Text           string         `json:"text,omitempty"`
	Image          *imageResponse `json:"image,omitempty"`
	Status         string         `json:"status"`
	SentAt         time.Time      `json:"sent_at"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
}

type conversationResponse struct {
	ID            string     `json:"id"`
	Participants  []string   `json:"participants"`
	LastMessageID string     `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Unread        int        `json:"unread"`
	CreatedAt     time.Time  `json:"created_at"`
}

type markAllReadResponse struct {
	ReadMessageIDs []string `json:"read_message_ids"`
}

func toMessageResponse(m *chat.Message) messageResponse {
	out := messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           string(m.Kind),
		Text:           m.Text,
		Status:         string(m.Status),
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
	}
	if m.Image != nil {
		out.Image = &imageResponse{URL: m.Image.URL, Filename: m.Image.Filename, Size: m.Image.Size}
	}
	return out
}

// toConversationResponse renders the caller's view: the unread counter is
// the viewer's own, not the whole map.
func toConversationResponse(c *chat.Conversation, viewerID string) conversationResponse {
	return conversationResponse{
		ID:            c.ID,
		Participants:  []string{c.Participants[0], c.Participants[1]},
		LastMessageID: c.LastMessageID,
		LastMessageAt: c.LastMessageAt,
		Unread:        c.Unread[viewerID],
		CreatedAt:     c.CreatedAt,
	}
}
