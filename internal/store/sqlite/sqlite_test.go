package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	logger := zerolog.Nop()
	if err := s.Migrate(context.Background(), &logger); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return s
}

func TestAppendMessageAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := time.Now()
	msg, err := s.AppendMessage(ctx, "general", "hi", "a@x.com")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if msg.ID == "" {
		t.Fatal("expected store-assigned id")
	}
	stamp, ok := msg.Timestamp.Time()
	if !ok {
		t.Fatal("expected server timestamp to be set")
	}
	if stamp.Before(before) {
		t.Fatalf("timestamp %v precedes call time %v", stamp, before)
	}

	msgs, err := s.ListMessages(ctx, "general")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != msg.ID || msgs[0].Content != "hi" || msgs[0].Author != "a@x.com" || msgs[0].Room != "general" {
		t.Fatalf("unexpected stored message: %+v", msgs[0])
	}
	stored, _ := msgs[0].Timestamp.Time()
	if !stored.Equal(stamp) {
		t.Fatalf("stored timestamp %v differs from returned %v", stored, stamp)
	}
}

func TestListMessagesOrdersByTimestampWithinRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A frozen clock forces the store to break ties itself.
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.AppendMessage(ctx, "general", text, "a@x.com"); err != nil {
			t.Fatalf("append %s: %v", text, err)
		}
	}
	if _, err := s.AppendMessage(ctx, "random", "elsewhere", "b@x.com"); err != nil {
		t.Fatalf("append random: %v", err)
	}

	msgs, err := s.ListMessages(ctx, "general")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []string{"one", "two", "three"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], m.Content)
		}
		if i > 0 {
			prev, _ := msgs[i-1].Timestamp.Time()
			cur, _ := m.Timestamp.Time()
			if !cur.After(prev) {
				t.Errorf("timestamps not strictly increasing at %d: %v then %v", i, prev, cur)
			}
		}
	}
}

func TestListMessagesUnknownRoomIsEmpty(t *testing.T) {
	s := newTestStore(t)

	msgs, err := s.ListMessages(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", msgs)
	}
}

func TestCreateUserConflictAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "a@x.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected user id")
	}

	if _, err := s.CreateUser(ctx, "a@x.com", "other"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@x.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewWithSetupRunsSetup(t *testing.T) {
	called := false
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		called = true
		_, err := db.Exec(`CREATE TABLE probe (id INTEGER)`)
		return err
	})
	if err != nil {
		t.Fatalf("new with setup: %v", err)
	}
	defer s.Close()

	if !called {
		t.Fatal("setup was not called")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMigrateConcurrentStores(t *testing.T) {
	for i := 0; i < 8; i++ {
		t.Run(fmt.Sprintf("store-%d", i), func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			if _, err := s.AppendMessage(context.Background(), "general", "hi", "a@x.com"); err != nil {
				t.Fatalf("append after migrate: %v", err)
			}
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendMessage(ctx, "general", "kept", "a@x.com"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Migrate(ctx, nil); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	msgs, err := s.ListMessages(ctx, "general")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "kept" {
		t.Fatalf("data changed by re-running migrations: %+v", msgs)
	}
}
