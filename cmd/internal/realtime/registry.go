package realtime

import (
	"log/slog"
	"sync"

	v1 "courier/contracts/realtime/v1"
)

// Registry maps users to their single live websocket session.
//
// Invariants:
// - At most one client per user. A new Register for the same user supersedes
//   the previous session; the superseded client is returned to the caller so
//   its goroutines can be wound down.
// - Unregister is handle-matched: it only removes the slot when the stored
//   session id equals the caller's, so a stale disconnect from a superseded
//   session never evicts its replacement.
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	byUser map[string]*Client
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:    log,
		byUser: make(map[string]*Client),
	}
}

// Register installs the client as the user's live session and returns the
// superseded client, if any.
func (r *Registry) Register(client *Client) *Client {
	if client == nil || client.UserID == "" || client.SessionID == "" {
		return nil
	}

	r.mu.Lock()
	prev := r.byUser[client.UserID]
	r.byUser[client.UserID] = client
	r.mu.Unlock()

	if prev != nil {
		r.log.Info("registry.session.supersede",
			"user_id", client.UserID, "old_session", prev.SessionID, "new_session", client.SessionID)
	} else {
		r.log.Info("registry.session.register", "user_id", client.UserID, "session_id", client.SessionID)
	}
	return prev
}

// Unregister removes the user's slot only when sessionID still owns it.
// Returns true when the slot was removed by this call.
func (r *Registry) Unregister(userID, sessionID string) bool {
	if userID == "" || sessionID == "" {
		return false
	}

	r.mu.Lock()
	cur, ok := r.byUser[userID]
	owned := ok && cur.SessionID == sessionID
	if owned {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	if owned {
		r.log.Info("registry.session.unregister", "user_id", userID, "session_id", sessionID)
	}
	return owned
}

// Lookup returns the user's live client, or nil.
func (r *Registry) Lookup(userID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// Online reports whether the user currently has a live session.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// OnlineUsers returns a snapshot of all users with a live session.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	return out
}

// Broadcast fans an envelope out to every live session, dropping under
// backpressure rather than blocking.
func (r *Registry) Broadcast(env v1.Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byUser {
		c.TrySend(env)
	}
}
