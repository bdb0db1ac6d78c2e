package authapi

import "time"

// Config holds auth HTTP tunables.
type Config struct {
	// MaxBodyBytes caps request body size for auth endpoints.
	MaxBodyBytes int64

	// Login throttling (per client IP, sliding window).
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for client IPs.
	TrustProxy bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:     16 << 10, // 16 KiB
		LoginMaxAttempts: 10,
		LoginWindow:      time.Minute,
		TrustProxy:       false,
	}
}
