package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "courier/contracts/realtime/v1"

	"github.com/coder/websocket"

	"courier/cmd/identity"
	"courier/cmd/identity/ids"
	"courier/cmd/internal/auth/session"
	"courier/cmd/internal/chat"
)

const (
	wsSubprotocolV1 = "courier.realtime.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Gateway is the WebSocket entrypoint for Courier realtime.
//
// It enforces origin policy, bearer authentication, subprotocol selection,
// rate limits and heartbeats, and routes validated envelopes into the
// delivery core. Each accepted connection becomes the user's single live
// session in the Registry.
type Gateway struct {
	log      *slog.Logger
	registry *Registry
	hub      *Hub
	typing   *TypingTracker
	svc      *chat.Service
	users    identity.Store
	tokens   session.AccessTokenManager
	metrics  *Metrics

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewGateway constructs a gateway with secure defaults.
func NewGateway(
	log *slog.Logger,
	registry *Registry,
	hub *Hub,
	typing *TypingTracker,
	svc *chat.Service,
	users identity.Store,
	tokens session.AccessTokenManager,
	metrics *Metrics,
) (*Gateway, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if registry == nil || hub == nil || typing == nil {
		return nil, errors.New("realtime: nil session primitives")
	}
	if svc == nil {
		return nil, errors.New("realtime: nil chat service")
	}
	if users == nil {
		return nil, errors.New("realtime: nil identity store")
	}
	if tokens == nil {
		return nil, errors.New("realtime: nil token manager")
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	g := &Gateway{
		log:      log,
		registry: registry,
		hub:      hub,
		typing:   typing,
		svc:      svc,
		users:    users,
		tokens:   tokens,
		metrics:  metrics,
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("COURIER_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("COURIER_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("COURIER_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("COURIER_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("COURIER_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("COURIER_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("COURIER_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("COURIER_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("COURIER_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("COURIER_WS_RATE_WINDOW", rateLimitWindow)

	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates and upgrades an HTTP request, then runs the
// realtime session loop until the peer disconnects or misbehaves.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	claims, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.auth", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		g.log.Info("ws.reject.unknown_user", "user_id", userID, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{wsSubprotocolV1},

		// Authorize allowed origin hosts (e.g. localhost) for cross-origin requests.
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	now := time.Now().UTC()
	sessionID, err := ids.NewULID(now)
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}

	client := NewClient(userID, sessionID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &wsSession{
		client: client,
		user:   user,
		joined: make(map[string]struct{}),
	}

	// The registry slot may already belong to an earlier session for this
	// user; it is superseded but not force-closed, and its later teardown
	// must not evict us (handle-matched unregister).
	g.registry.Register(client)
	g.metrics.SessionsActive.Inc()
	g.metrics.SessionsTotal.Inc()

	// Join every conversation the user participates in, so room broadcasts
	// reach all online participants without per-event membership lookups.
	if convs, err := g.svc.Conversations(ctx, userID); err != nil {
		g.log.Warn("ws.autojoin.fail", "user_id", userID, "err", err)
	} else {
		for _, cv := range convs {
			g.hub.Room(cv.ID).Join(client)
			sess.addJoined(cv.ID)
		}
	}

	g.broadcastPresence(userID, v1.PresenceOnline, now)
	g.log.Info("ws.session.open", "user_id", userID, "session_id", sessionID)

	// shutdown is idempotent. Teardown order matters: handle-matched
	// unregister decides ownership first, and the user-keyed typing sweep
	// and offline presence run only when this session still owned the
	// registry slot, so a stale superseded session cannot clear state the
	// newer session is using.
	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			tsNow := time.Now().UTC()

			owned := g.registry.Unregister(userID, sessionID)
			if owned {
				for _, convID := range g.typing.ClearUser(userID) {
					g.broadcastTyping(convID, sess, false, tsNow)
				}
			}
			for _, convID := range sess.joinedSnapshot() {
				g.hub.Leave(convID, sessionID)
			}
			if owned {
				g.broadcastPresence(userID, v1.PresenceOffline, tsNow)
			}

			client.Close()
			_ = conn.Close(code, reason)
			cancel()

			g.metrics.SessionsActive.Dec()
			g.log.Info("ws.session.close", "user_id", userID, "session_id", sessionID,
				"owned_slot", owned, "reason", reason)
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		eventNow := time.Now().UTC()
		if !rl.Allow(eventNow) {
			g.trySendError(client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeConversationJoin:
			if err := g.onJoin(ctx, sess, env); err != nil {
				g.sendDomainError(client, "join_failed", err)
			}

		case v1.TypeSendMessage:
			if err := g.onSendMessage(ctx, sess, env); err != nil {
				g.sendDomainError(client, "send_failed", err)
			}

		case v1.TypeTypingStart:
			if err := g.onTyping(ctx, sess, env, true, eventNow); err != nil {
				g.sendDomainError(client, "typing_failed", err)
			}

		case v1.TypeTypingStop:
			if err := g.onTyping(ctx, sess, env, false, eventNow); err != nil {
				g.sendDomainError(client, "typing_failed", err)
			}

		case v1.TypeMarkAsRead:
			if err := g.onMarkAsRead(ctx, sess, env); err != nil {
				g.sendDomainError(client, "read_failed", err)
			}

		default:
			g.trySendError(client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// wsSession carries the per-connection state shared between the read loop
// and the teardown path.
type wsSession struct {
	client *Client
	user   identity.User

	mu     sync.Mutex
	joined map[string]struct{}
}

func (s *wsSession) addJoined(conversationID string) {
	s.mu.Lock()
	s.joined[conversationID] = struct{}{}
	s.mu.Unlock()
}

func (s *wsSession) isJoined(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joined[conversationID]
	return ok
}

func (s *wsSession) joinedSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for id := range s.joined {
		out = append(out, id)
	}
	return out
}

// ---- handlers ----

func (g *Gateway) onJoin(ctx context.Context, sess *wsSession, env v1.Envelope) error {
	var p v1.ConversationJoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	convID := strings.TrimSpace(p.ConversationID)
	if convID == "" {
		return errors.New("missing conversation_id")
	}

	ok, err := g.svc.IsParticipant(ctx, convID, sess.client.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant", chat.ErrNotAuthorized)
	}

	g.hub.Room(convID).Join(sess.client)
	sess.addJoined(convID)

	echoPayload, _ := json.Marshal(v1.ConversationJoinPayload{ConversationID: convID})
	sess.client.TrySend(newEnvelope(v1.TypeConversationJoin, echoPayload, time.Now().UTC()))
	return nil
}

func (g *Gateway) onSendMessage(ctx context.Context, sess *wsSession, env v1.Envelope) error {
	var p v1.SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	in := chat.SendInput{
		SenderID:       sess.client.UserID,
		ConversationID: strings.TrimSpace(p.ConversationID),
		Kind:           chat.Kind(p.Kind),
		Text:           p.Text,
	}
	if p.Image != nil {
		in.Image = &chat.Image{URL: p.Image.URL, Filename: p.Image.Filename, Size: p.Image.Size}
	}

	_, err := g.svc.Send(ctx, in)
	return err
}

func (g *Gateway) onTyping(ctx context.Context, sess *wsSession, env v1.Envelope, start bool, now time.Time) error {
	var p v1.TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	convID := strings.TrimSpace(p.ConversationID)
	if convID == "" {
		return errors.New("missing conversation_id")
	}

	// Sessions only announce typing in conversations they joined, which
	// also bounds the tracker to authorized conversations.
	if !sess.isJoined(convID) {
		ok, err := g.svc.IsParticipant(ctx, convID, sess.client.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: not a participant", chat.ErrNotAuthorized)
		}
		g.hub.Room(convID).Join(sess.client)
		sess.addJoined(convID)
	}

	var changed bool
	if start {
		changed = g.typing.Start(convID, sess.client.UserID)
	} else {
		changed = g.typing.Stop(convID, sess.client.UserID)
	}
	if !changed {
		// Duplicate start or stop-without-start: nothing to announce.
		return nil
	}

	g.broadcastTyping(convID, sess, start, now)
	return nil
}

func (g *Gateway) onMarkAsRead(ctx context.Context, sess *wsSession, env v1.Envelope) error {
	var p v1.MarkAsReadPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	msgID := strings.TrimSpace(p.MessageID)
	if msgID == "" {
		return errors.New("missing message_id")
	}

	_, err := g.svc.MarkRead(ctx, msgID, sess.client.UserID)
	return err
}

// ---- broadcast helpers ----

func (g *Gateway) broadcastTyping(conversationID string, sess *wsSession, isTyping bool, now time.Time) {
	payload, _ := json.Marshal(v1.UserTypingPayload{
		UserID:         sess.client.UserID,
		DisplayName:    sess.user.Name,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
	g.hub.BroadcastExcept(conversationID, sess.client.SessionID, newEnvelope(v1.TypeUserTyping, payload, now))
	g.metrics.TypingEvents.Inc()
}

func (g *Gateway) broadcastPresence(userID, status string, now time.Time) {
	payload, _ := json.Marshal(v1.UserStatusPayload{
		UserID:    userID,
		Status:    status,
		Timestamp: now,
	})
	g.registry.Broadcast(newEnvelope(v1.TypeUserStatus, payload, now))
}

// ---- auth ----

// authenticate resolves the bearer token from the Authorization header or,
// for browser clients that cannot set headers on websocket dials, the
// "token" query parameter.
func (g *Gateway) authenticate(r *http.Request) (session.AccessClaims, error) {
	raw := ""
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		const prefix = "Bearer "
		if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
			return session.AccessClaims{}, errors.New("malformed authorization header")
		}
		raw = strings.TrimSpace(h[len(prefix):])
	} else {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if raw == "" {
		return session.AccessClaims{}, errors.New("missing bearer token")
	}
	return g.tokens.Verify(raw, time.Now().UTC())
}

// ---- send helpers ----

func (g *Gateway) trySendError(client *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	if !client.TrySend(newEnvelope(v1.TypeError, p, time.Now().UTC())) {
		g.metrics.DroppedEnvelopes.Inc()
	}
}

// sendDomainError maps delivery-core sentinels onto wire error codes.
func (g *Gateway) sendDomainError(client *Client, fallback string, err error) {
	code := fallback
	switch {
	case errors.Is(err, chat.ErrNotAuthorized):
		code = "not_authorized"
	case errors.Is(err, chat.ErrInvalidMessage):
		code = "invalid_message"
	case errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, chat.ErrConversationNotFound):
		code = "not_found"
	case errors.Is(err, chat.ErrInvalidParticipants):
		code = "invalid_participants"
	case errors.Is(err, chat.ErrInvalidTransition):
		code = "invalid_transition"
	}
	g.trySendError(client, code, err.Error())
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
