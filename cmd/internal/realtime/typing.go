package realtime

import "sync"

// TypingTracker keeps per-conversation sets of users currently typing.
//
// The server never expires entries on a timer: a user leaves a set only via
// an explicit stop or when their session tears down. Duplicate starts and
// stops without a start are no-ops so clients can be sloppy with their own
// debounce timers.
type TypingTracker struct {
	mu sync.Mutex
	// conversation id -> set of typing user ids
	byConv map[string]map[string]struct{}
}

// NewTypingTracker constructs an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		byConv: make(map[string]map[string]struct{}),
	}
}

// Start marks userID as typing in the conversation. Returns true only when
// this call changed state, i.e. the user was not already typing there.
func (t *TypingTracker) Start(conversationID, userID string) bool {
	if conversationID == "" || userID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.byConv[conversationID]
	if !ok {
		set = make(map[string]struct{}, 2)
		t.byConv[conversationID] = set
	}
	if _, already := set[userID]; already {
		return false
	}
	set[userID] = struct{}{}
	return true
}

// Stop clears userID's typing state in the conversation. Returns true only
// when the user was actually typing there.
func (t *TypingTracker) Stop(conversationID, userID string) bool {
	if conversationID == "" || userID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.byConv[conversationID]
	if !ok {
		return false
	}
	if _, was := set[userID]; !was {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(t.byConv, conversationID)
	}
	return true
}

// ClearUser removes userID from every conversation set and returns the
// conversation ids that changed, so the caller can announce the stops.
func (t *TypingTracker) ClearUser(userID string) []string {
	if userID == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []string
	for convID, set := range t.byConv {
		if _, was := set[userID]; !was {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(t.byConv, convID)
		}
		cleared = append(cleared, convID)
	}
	return cleared
}

// Typing returns a snapshot of the users typing in the conversation.
func (t *TypingTracker) Typing(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.byConv[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
