package authapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"courier/cmd/internal/auth/session"
)

type contextKey struct{ name string }

var userIDKey = contextKey{"user_id"}

// UserID returns the authenticated user id stored by RequireAuth, or "".
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// RequireAuth verifies the bearer token and injects the user id into the
// request context. Requests without a valid token get a 401.
func RequireAuth(tokens session.AccessTokenManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			WriteError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
			return
		}

		claims, err := tokens.Verify(raw, time.Now().UTC())
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "invalid_token", "token invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
