package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courier/cmd/identity/ids"
)

const memMaxMessagesPerConversation = 10_000

// MemoryStore is an in-memory Store used for dev mode and tests.
// A single mutex makes every operation atomic, which trivially satisfies the
// aggregate/counter atomicity requirements.
type MemoryStore struct {
	mu       sync.Mutex
	convs    map[string]*Conversation
	byPair   map[[2]string]string // canonical pair -> conversation id
	messages map[string]*Message
	order    map[string][]string // conversation id -> message ids, send order
}

// NewMemoryStore constructs an empty in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:    make(map[string]*Conversation),
		byPair:   make(map[[2]string]string),
		messages: make(map[string]*Message),
		order:    make(map[string][]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

func copyMessage(m *Message) *Message {
	out := *m
	if m.Image != nil {
		img := *m.Image
		out.Image = &img
	}
	if m.DeliveredAt != nil {
		t := *m.DeliveredAt
		out.DeliveredAt = &t
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		out.ReadAt = &t
	}
	return &out
}

func copyConversation(c *Conversation) *Conversation {
	out := *c
	out.Unread = make(map[string]int, len(c.Unread))
	for k, v := range c.Unread {
		out.Unread[k] = v
	}
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		out.LastMessageAt = &t
	}
	return &out
}

// AppendMessage persists msg and applies the conversation aggregate in one step.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[msg.ConversationID]
	if !ok {
		return fmt.Errorf("memory append: %w", ErrConversationNotFound)
	}
	if _, dup := s.messages[msg.ID]; dup {
		return fmt.Errorf("memory append: duplicate message id %s", msg.ID)
	}

	s.messages[msg.ID] = copyMessage(msg)
	s.order[msg.ConversationID] = append(s.order[msg.ConversationID], msg.ID)

	// Bound memory to avoid unbounded growth in dev.
	if ids := s.order[msg.ConversationID]; len(ids) > memMaxMessagesPerConversation {
		drop := ids[:len(ids)-memMaxMessagesPerConversation]
		for _, id := range drop {
			delete(s.messages, id)
		}
		s.order[msg.ConversationID] = append([]string(nil), ids[len(drop):]...)
	}

	at := msg.SentAt
	conv.LastMessageID = msg.ID
	conv.LastMessageAt = &at
	for _, p := range conv.Participants {
		if p != msg.SenderID {
			conv.Unread[p]++
		}
	}
	return nil
}

// GetMessage returns a copy of the message with the given id.
func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("memory get: %w", ErrMessageNotFound)
	}
	return copyMessage(m), nil
}

// UpdateMessageStatus applies a guarded forward-only transition.
func (s *MemoryStore) UpdateMessageStatus(ctx context.Context, id string, to Status, at time.Time) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("memory status: %w: unknown status %q", ErrInvalidTransition, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("memory status: %w", ErrMessageNotFound)
	}
	if !to.After(m.Status) {
		return nil, fmt.Errorf("memory status: %w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}

	m.Status = to
	switch to {
	case StatusDelivered:
		t := at
		m.DeliveredAt = &t
	case StatusRead:
		t := at
		m.ReadAt = &t
		if m.DeliveredAt == nil {
			m.DeliveredAt = &t
		}
	}
	return copyMessage(m), nil
}

// MessagesByConversation returns a history window in ascending send order.
func (s *MemoryStore) MessagesByConversation(ctx context.Context, conversationID string, page Page) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Message
	ids := s.order[conversationID]
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[ids[i]]
		if m == nil {
			continue
		}
		if !page.Before.IsZero() && !m.SentAt.Before(page.Before) {
			continue
		}
		out = append(out, *copyMessage(m))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// GetConversation returns a copy of the conversation with the given id.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("memory get: %w", ErrConversationNotFound)
	}
	return copyConversation(c), nil
}

// FindConversation resolves the conversation for an unordered user pair.
func (s *MemoryStore) FindConversation(ctx context.Context, userA, userB string) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lo, hi := pairKey(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[[2]string{lo, hi}]
	if !ok {
		return nil, fmt.Errorf("memory find: %w", ErrConversationNotFound)
	}
	return copyConversation(s.convs[id]), nil
}

// FindOrCreateConversation returns the pair's conversation, creating it once.
// Holding the store mutex across check-and-create serializes concurrent calls
// for the same pair.
func (s *MemoryStore) FindOrCreateConversation(ctx context.Context, userA, userB string, now time.Time) (*Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if userA == userB || userA == "" || userB == "" {
		return nil, false, fmt.Errorf("memory find_or_create: %w", ErrInvalidParticipants)
	}

	lo, hi := pairKey(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[[2]string{lo, hi}]; ok {
		return copyConversation(s.convs[id]), false, nil
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return nil, false, err
	}
	c := &Conversation{
		ID:           id,
		Participants: [2]string{lo, hi},
		Unread:       map[string]int{lo: 0, hi: 0},
		CreatedAt:    now,
	}
	s.convs[id] = c
	s.byPair[[2]string{lo, hi}] = id
	return copyConversation(c), true, nil
}

// MarkConversationRead applies the bulk read: every sent/delivered message not
// sent by readerID becomes read, and readerID's unread counter resets to 0.
// Both effects happen under one lock acquisition.
func (s *MemoryStore) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("memory mark_read: %w", ErrConversationNotFound)
	}

	var affected []string
	for _, id := range s.order[conversationID] {
		m := s.messages[id]
		if m == nil || m.SenderID == readerID || m.Status == StatusRead {
			continue
		}
		m.Status = StatusRead
		t := at
		m.ReadAt = &t
		if m.DeliveredAt == nil {
			m.DeliveredAt = &t
		}
		affected = append(affected, id)
	}

	conv.Unread[readerID] = 0
	return affected, nil
}

// ConversationsForUser lists the user's conversations, newest activity first.
func (s *MemoryStore) ConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Conversation
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, *copyConversation(c))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case ti == nil && tj == nil:
			return out[i].ID > out[j].ID
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return out, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *MemoryStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return false, nil
	}
	return c.HasParticipant(userID), nil
}
