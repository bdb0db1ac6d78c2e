package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const userCollection = "users"

// MongoStore is a Store backed by MongoDB. The caller owns the client.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore constructs a Mongo-backed identity store.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil mongo database")
	}
	return &MongoStore{db: db}, nil
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	AvatarURL    string    `bson:"avatar_url,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d userDoc) user() User {
	return User{
		ID:           d.ID,
		Email:        d.Email,
		Name:         d.Name,
		AvatarURL:    d.AvatarURL,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// Create registers a new user. A unique index on "email" is the authority
// for conflicts under concurrent registration.
func (s *MongoStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
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

	doc := userDoc{ID: id, Email: email, Name: name, PasswordHash: hash, CreatedAt: now}
	if _, err := s.db.Collection(userCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, fmt.Errorf("identity.Create: %w: email", ErrConflict)
		}
		return User{}, err
	}
	return doc.user(), nil
}

// GetByID looks up a user by id.
func (s *MongoStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getBy(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by normalized email.
func (s *MongoStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getBy(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *MongoStore) getBy(ctx context.Context, filter bson.M) (User, error) {
	var doc userDoc
	err := s.db.Collection(userCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, fmt.Errorf("identity.GetBy: %w: user", ErrNotFound)
	}
	if err != nil {
		return User{}, err
	}
	return doc.user(), nil
}
