package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	cfg.DatabasePath = filepath.Join(t.TempDir(), "roomchat.db")
	cfg.Timezone = "UTC"
	return cfg
}

func TestMigrateCreatesSchema(t *testing.T) {
	cfg := testConfig(t)
	logger := zerolog.Nop()

	if err := Migrate(context.Background(), &cfg, &logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()

	msgs, err := st.ListMessages(context.Background(), "general")
	if err != nil {
		t.Fatalf("list messages after migrate: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty room, got %d messages", len(msgs))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	application, err := New(ctx, &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not a url"
	logger := zerolog.Nop()

	if _, err := New(context.Background(), &cfg, &logger); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}
