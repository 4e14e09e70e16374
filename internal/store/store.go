package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects an insert.
	ErrConflict = errors.New("conflict")
)

// User represents a registered account. Email is the handle messages are authored with.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents one persisted chat entry in a room partition.
type Message struct {
	ID        string
	Room      string
	Content   string
	Author    string
	Timestamp Timestamp
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage adds a message to the room partition. The store assigns
	// the identifier and the timestamp; callers never supply either.
	AppendMessage(ctx context.Context, room, content, author string) (*Message, error)

	// ListMessages returns every message of a room ordered by timestamp ascending.
	ListMessages(ctx context.Context, room string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
