package identity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string // normalized email -> user id
}

// NewMemoryStore constructs an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

// Create registers a new user. The normalized email must be unique.
func (s *MemoryStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := NormalizeEmail(in.Email)
	name := NormalizeName(in.Name)
	if email == "" || name == "" {
		return User{}, fmt.Errorf("identity.Create: %w: email and name required", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password, DefaultArgon2idParams())
	if err != nil {
		return User{}, fmt.Errorf("identity.Create: %w: %v", ErrInvalidInput, err)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return User{}, fmt.Errorf("identity.Create: %w: email", ErrConflict)
	}

	u := User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	s.byID[id] = u
	s.byEmail[email] = id
	return u, nil
}

// GetByID looks up a user by id.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, fmt.Errorf("identity.GetByID: %w: user", ErrNotFound)
	}
	return u, nil
}

// GetByEmail looks up a user by normalized email.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, fmt.Errorf("identity.GetByEmail: %w: user", ErrNotFound)
	}
	return s.byID[id], nil
}
