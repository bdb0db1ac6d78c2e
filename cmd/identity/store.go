package identity

import (
	"context"
	"time"
)

// User is Courier's canonical user profile.
//
// The realtime core only needs an identity reference plus a display-name
// snapshot for event payloads; PasswordHash never leaves this package's
// consumers and is never serialized into wire events.
type User struct {
	ID           string
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string

	CreatedAt time.Time
}

// CreateUserInput describes a user registration request.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	Now      time.Time
}

// Store is the user identity persistence boundary.
//
// GetByID returns ErrNotFound (wrapped) when the user does not exist.
// Create returns ErrConflict when the normalized email is already taken.
type Store interface {
	Create(ctx context.Context, in CreateUserInput) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}
