package chat

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to wire/API codes).
var (
	// ErrNotAuthorized: authenticated but not allowed to touch the target
	// conversation or message (includes read-acknowledging your own message).
	ErrNotAuthorized = errors.New("not_authorized")

	// ErrInvalidMessage: malformed send payload (missing/double payload,
	// kind mismatch, oversized text). Client-correctable.
	ErrInvalidMessage = errors.New("invalid_message")

	// ErrInvalidTransition: illegal status move (backward or no-op).
	ErrInvalidTransition = errors.New("invalid_transition")

	// ErrInvalidParticipants: a conversation needs exactly two distinct,
	// existing users.
	ErrInvalidParticipants = errors.New("invalid_participants")

	ErrMessageNotFound      = errors.New("message_not_found")
	ErrConversationNotFound = errors.New("conversation_not_found")
)
