package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.Create(ctx, CreateUserInput{
		Email:    "  Alice@Example.COM ",
		Name:     "  Alice  ",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("empty id")
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.Name != "Alice" {
		t.Fatalf("name not trimmed: %q", u.Name)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse battery" {
		t.Fatal("password not hashed")
	}

	byID, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.ID != u.ID {
		t.Fatalf("GetByID = %+v", byID)
	}

	// Lookup is case-insensitive through normalization.
	byEmail, err := s.GetByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("GetByEmail = %+v", byEmail)
	}
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := CreateUserInput{Email: "alice@example.com", Name: "Alice", Password: "correct horse battery"}
	if _, err := s.Create(ctx, in); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	in.Email = "ALICE@Example.com"
	if _, err := s.Create(ctx, in); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryStoreCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing email", CreateUserInput{Name: "Alice", Password: "correct horse battery"}},
		{"missing name", CreateUserInput{Email: "a@example.com", Password: "correct horse battery"}},
		{"short password", CreateUserInput{Email: "a@example.com", Name: "Alice", Password: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tc.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByEmail: expected ErrNotFound, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
	if got := NormalizeName("  Alice Liddell "); got != "Alice Liddell" {
		t.Fatalf("NormalizeName = %q", got)
	}
}

func TestNewULID(t *testing.T) {
	now := time.Now().UTC()

	id, err := NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("len = %d, want 26", len(id))
	}

	// Later timestamps sort after earlier ones.
	later, err := NewULID(now.Add(time.Second))
	if err != nil {
		t.Fatalf("NewULID later: %v", err)
	}
	if !(id < later) {
		t.Fatalf("ULIDs not time-ordered: %s >= %s", id, later)
	}

	// Zero time falls back to the current clock.
	if _, err := NewULID(time.Time{}); err != nil {
		t.Fatalf("NewULID zero time: %v", err)
	}
}
