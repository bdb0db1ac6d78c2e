package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"courier/cmd/identity"
	"courier/cmd/internal/auth/session"
)

// Handler wires the HTTP auth endpoints to the identity store and token
// manager.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	users  identity.Store
	tokens session.AccessTokenManager

	throttle *ipThrottle

	// Dummy hash for timing-resistant login checks against unknown emails.
	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, users identity.Store, tokens session.AccessTokenManager, cfg Config) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("auth: nil identity store")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token manager")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg = DefaultConfig()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		throttle: newIPThrottle(cfg.LoginMaxAttempts, cfg.LoginWindow),
	}

	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/me", RequireAuth(h.tokens, http.HandlerFunc(h.handleMe)).ServeHTTP)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	user, err := h.users.Create(ctx, identity.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Now:      now,
	})
	switch {
	case errors.Is(err, identity.ErrConflict):
		WriteError(w, http.StatusConflict, "email_taken", "email already registered")
		return
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrPasswordTooShort),
		errors.Is(err, identity.ErrPasswordTooLong):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case err != nil:
		h.log.Error("auth.register.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "could not register")
		return
	}

	token, exp, err := h.tokens.Issue(user.ID, now)
	if err != nil {
		h.log.Error("auth.register.token.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "could not issue token")
		return
	}

	h.log.Info("auth.register.ok", "user_id", user.ID)
	WriteJSON(w, http.StatusCreated, authResponse{Token: token, ExpiresAt: exp, User: toUserResponse(user)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	if !h.throttle.Allow(ip, now) {
		h.log.Info("auth.login.rate_limited", "ip", ip)
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		// Burn comparable CPU on unknown emails so response timing does not
		// reveal account existence.
		_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.log.Info("auth.login.bad_password", "user_id", user.ID)
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	token, exp, err := h.tokens.Issue(user.ID, now)
	if err != nil {
		h.log.Error("auth.login.token.fail", "err", err)
		WriteError(w, http.StatusInternalServerError, "server_error", "could not issue token")
		return
	}

	h.log.Info("auth.login.ok", "user_id", user.ID)
	WriteJSON(w, http.StatusOK, authResponse{Token: token, ExpiresAt: exp, User: toUserResponse(user)})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := UserID(r.Context())
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "unknown_user", "user no longer exists")
		return
	}
	WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// ---- helpers ----

// clientIP extracts the peer IP, honoring proxy headers only when configured.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			if i := strings.IndexByte(xff, ','); i > 0 {
				return strings.TrimSpace(xff[:i])
			}
			return xff
		}
		if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
			return rip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
