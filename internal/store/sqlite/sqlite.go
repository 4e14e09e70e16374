package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB

	// mu guards lastStamp so server timestamps are strictly increasing.
	mu        sync.Mutex
	lastStamp time.Time
	now       func() time.Time
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Migrate applies the embedded goose migrations. It uses a provider scoped to
// this store, so concurrent stores do not share goose state.
func (s *SQLiteStore) Migrate(ctx context.Context, logger *zerolog.Logger) error {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, res := range results {
		logger.Info().
			Int64("version", res.Source.Version).
			Dur("took", res.Duration).
			Msg("applied migration")
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (email, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %q: %w", email, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return &store.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== MessageStore implementation ====

// AppendMessage stores a message with a store-assigned id and timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, room, content, author string) (*store.Message, error) {
	stamp := s.stamp()
	id := ulid.MustNew(ulid.Timestamp(stamp), ulid.DefaultEntropy()).String()

	query := `
		INSERT INTO messages (id, room, content, author, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, room, content, author, stamp.UnixNano()); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &store.Message{
		ID:        id,
		Room:      room,
		Content:   content,
		Author:    author,
		Timestamp: store.ServerTimestamp(stamp),
	}, nil
}

// ListMessages returns all messages of a room, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, room string) ([]*store.Message, error) {
	query := `
		SELECT id, room, content, author, created_at
		FROM messages
		WHERE room = ?
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg     store.Message
			created sql.NullInt64
		)
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Content, &msg.Author, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if created.Valid {
			msg.Timestamp = store.ServerTimestamp(time.Unix(0, created.Int64).UTC())
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// stamp returns the server time for a new message, never earlier than or equal to the previous one.
func (s *SQLiteStore) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
