package authapi

import (
	"sync"
	"time"
)

// ipThrottle is a per-key sliding-window attempt limiter kept in memory.
// Entries are pruned opportunistically on each check.
type ipThrottle struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
}

func newIPThrottle(limit int, window time.Duration) *ipThrottle {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ipThrottle{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records an attempt for key at time now and reports whether it is
// within the limit.
func (t *ipThrottle) Allow(key string, now time.Time) bool {
	if key == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cut := now.Add(-t.window)
	kept := t.attempts[key][:0]
	for _, at := range t.attempts[key] {
		if at.After(cut) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= t.limit {
		t.attempts[key] = kept
		return false
	}

	t.attempts[key] = append(kept, now)
	return true
}
