// Package chatapi exposes the delivery core over plain HTTP. It mirrors the
// websocket operations so clients without a live session (mobile push
// handlers, scripts) can send, list and acknowledge messages.
package chatapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	authapi "courier/cmd/internal/auth/api"
	"courier/cmd/internal/auth/session"
	"courier/cmd/internal/chat"
)

const (
	maxBodyBytes = 64 << 10 // 64 KiB, image messages carry only URLs

	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Handler wires the REST endpoints to the chat service.
type Handler struct {
	log    *slog.Logger
	svc    *chat.Service
	tokens session.AccessTokenManager
}

// NewHandler constructs a chat REST handler.
func NewHandler(log *slog.Logger, svc *chat.Service, tokens session.AccessTokenManager) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("chatapi: nil chat service")
	}
	if tokens == nil {
		return nil, errors.New("chatapi: nil token manager")
	}
	return &Handler{log: log, svc: svc, tokens: tokens}, nil
}

// Register wires chat routes onto the provided mux. Every route requires a
// bearer token.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	auth := func(fn http.HandlerFunc) http.Handler {
		return authapi.RequireAuth(h.tokens, fn)
	}

	mux.Handle("POST /api/v1/conversations", auth(h.handleStartConversation))
	mux.Handle("GET /api/v1/conversations", auth(h.handleListConversations))
	mux.Handle("GET /api/v1/conversations/{id}/messages", auth(h.handleListMessages))
	mux.Handle("POST /api/v1/conversations/{id}/read", auth(h.handleMarkAllRead))
	mux.Handle("POST /api/v1/messages", auth(h.handleSendMessage))
	mux.Handle("PATCH /api/v1/messages/{id}/status", auth(h.handleUpdateStatus))
}

// ---- handlers ----

func (h *Handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := authapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		authapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	userID := authapi.UserID(r.Context())
	conv, created, err := h.svc.StartConversation(r.Context(), userID, strings.TrimSpace(req.UserID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	authapi.WriteJSON(w, status, toConversationResponse(conv, userID))
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := authapi.UserID(r.Context())
	convs, err := h.svc.Conversations(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]conversationResponse, 0, len(convs))
	for i := range convs {
		out = append(out, toConversationResponse(&convs[i], userID))
	}
	authapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := authapi.UserID(r.Context())
	convID := r.PathValue("id")

	page := chat.Page{Limit: defaultPageLimit}
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			authapi.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if n > maxPageLimit {
			n = maxPageLimit
		}
		page.Limit = n
	}
	if v := strings.TrimSpace(r.URL.Query().Get("before")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			authapi.WriteError(w, http.StatusBadRequest, "invalid_request", "before must be RFC 3339")
			return
		}
		page.Before = t
	}

	msgs, err := h.svc.Messages(r.Context(), convID, userID, page)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i]))
	}
	authapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := authapi.UserID(r.Context())
	convID := r.PathValue("id")

	affected, err := h.svc.MarkAllRead(r.Context(), convID, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	authapi.WriteJSON(w, http.StatusOK, markAllReadResponse{ReadMessageIDs: affected})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := authapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		authapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	in := chat.SendInput{
		SenderID:       authapi.UserID(r.Context()),
		ConversationID: strings.TrimSpace(req.ConversationID),
		Kind:           chat.Kind(req.Kind),
		Text:           req.Text,
	}
	if req.Image != nil {
		in.Image = &chat.Image{URL: req.Image.URL, Filename: req.Image.Filename, Size: req.Image.Size}
	}

	msg, err := h.svc.Send(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	authapi.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := authapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		authapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	userID := authapi.UserID(r.Context())
	msgID := r.PathValue("id")

	var (
		msg *chat.Message
		err error
	)
	switch chat.Status(req.Status) {
	case chat.StatusDelivered:
		msg, err = h.svc.MarkDelivered(r.Context(), msgID, userID)
	case chat.StatusRead:
		msg, err = h.svc.MarkRead(r.Context(), msgID, userID)
	default:
		authapi.WriteError(w, http.StatusBadRequest, "invalid_request", "status must be delivered or read")
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	authapi.WriteJSON(w, http.StatusOK, toMessageResponse(msg))
}

// writeDomainError maps delivery-core sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotAuthorized):
		authapi.WriteError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, chat.ErrInvalidMessage), errors.Is(err, chat.ErrInvalidParticipants):
		authapi.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, chat.ErrInvalidTransition):
		authapi.WriteError(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, chat.ErrConversationNotFound):
		authapi.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.log.Error("chatapi.request.fail", "err", err)
		authapi.WriteError(w, http.StatusInternalServerError, "server_error", "request failed")
	}
}
