package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "courier").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("identity: empty schema")
		}
		if !validPGIdent.MatchString(schema) {
			return errors.New("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

var validPGIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewPostgresStore constructs a Postgres-backed identity store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "courier",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return fmt.Sprintf("%q.%q", s.schema, "users")
}

// Create registers a new user; the unique index on email_norm is the
// authority for conflicts under concurrent registration.
func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (id, email_norm, display_name, avatar_url, password_hash, created_at)
		 VALUES ($1, $2, $3, '', $4, $5)`,
		id, email, name, hash, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("identity.Create: %w: email", ErrConflict)
		}
		return User{}, err
	}

	return User{ID: id, Email: email, Name: name, PasswordHash: hash, CreatedAt: now}, nil
}

// GetByID looks up a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail looks up a user by normalized email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getBy(ctx, "email_norm", NormalizeEmail(email))
}

func (s *PostgresStore) getBy(ctx context.Context, col, val string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email_norm, display_name, avatar_url, password_hash, created_at
		 FROM `+s.users()+` WHERE `+col+` = $1`,
		val,
	).Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("identity.GetBy(%s): %w: user", col, ErrNotFound)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
