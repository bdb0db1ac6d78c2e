package realtime

import (
	"log/slog"
	"sync"

	v1 "courier/contracts/realtime/v1"
)

// Hub owns in-memory rooms, one per conversation, and provides stable room
// handles. Persistence and authorization live elsewhere; a room is purely a
// fan-out primitive over the sessions that joined it.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// Room returns a stable in-memory room handle for the conversation.
func (h *Hub) Room(conversationID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[conversationID]; ok {
		return r
	}

	r := newRoom(h.log, conversationID)
	h.rooms[conversationID] = r
	return r
}

// Leave removes the session from the conversation's room, dropping the room
// once it is empty.
func (h *Hub) Leave(conversationID, sessionID string) {
	h.mu.Lock()
	r, ok := h.rooms[conversationID]
	h.mu.Unlock()
	if !ok {
		return
	}

	empty := r.leave(sessionID)
	if !empty {
		return
	}

	h.mu.Lock()
	// Re-check under the lock: a concurrent Join may have repopulated it.
	if cur, ok := h.rooms[conversationID]; ok && cur == r && cur.empty() {
		delete(h.rooms, conversationID)
	}
	h.mu.Unlock()
}

// Broadcast fans an envelope out to all members of the conversation's room.
func (h *Hub) Broadcast(conversationID string, env v1.Envelope) {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if ok {
		r.Broadcast(env)
	}
}

// BroadcastExcept fans an envelope out to all members except one session.
func (h *Hub) BroadcastExcept(conversationID, exceptSessionID string, env v1.Envelope) {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if ok {
		r.BroadcastExcept(exceptSessionID, env)
	}
}

// Room is an in-memory membership + broadcast fan-out primitive.
//
// Concurrency guarantees:
// - Join/leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  string

	mu      sync.RWMutex
	members map[string]*Client
}

func newRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	r.log.Debug("room.member.join", "conversation_id", r.ID, "session_id", client.SessionID)
}

// leave removes a client from membership and reports whether the room is now
// empty. It does not close the client: a session belongs to many rooms.
func (r *Room) leave(sessionID string) bool {
	if r == nil || sessionID == "" {
		return false
	}

	r.mu.Lock()
	delete(r.members, sessionID)
	n := len(r.members)
	r.mu.Unlock()

	r.log.Debug("room.member.leave", "conversation_id", r.ID, "session_id", sessionID)
	return n == 0
}

func (r *Room) empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0
}

// Broadcast fans an envelope out to all members.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (r *Room) Broadcast(env v1.Envelope) {
	r.BroadcastExcept("", env)
}

// BroadcastExcept fans an envelope out to all members except exceptSessionID.
func (r *Room) BroadcastExcept(exceptSessionID string, env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for sid, m := range r.members {
		if m == nil || sid == exceptSessionID {
			continue
		}
		m.TrySend(env)
	}
}
