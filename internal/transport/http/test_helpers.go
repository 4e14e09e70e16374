package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/livequery"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

const testSecret = "test-secret"

// testEnv is a running server over an in-memory store.
type testEnv struct {
	ts   *httptest.Server
	auth *auth.Service
	gw   *gateway.Gateway
	cfg  config.Config
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWTSecret = testSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	cfg.Timezone = "UTC"
	return cfg
}

// createTestStore creates an in-memory SQLite store with migrations applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st *sqlite.SQLiteStore, cfg config.Config) *auth.Service {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig, bcrypt.MinCost)
}

func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st := createTestStore(t)
	logger := zerolog.Nop()
	gw := gateway.New(st, livequery.NewLocal(), &logger)
	authService := createTestAuthService(st, cfg)

	server, err := NewServer(gw, authService, &cfg, &logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, auth: authService, gw: gw, cfg: cfg}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	token, err := e.auth.Register(context.Background(), email, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return token
}

// testFrame is an outbound frame with its payload left raw.
type testFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (f testFrame) snapshot(t *testing.T) proto.EventSnapshotData {
	t.Helper()
	var data proto.EventSnapshotData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return data
}

// wsTestClient reads frames in order and keeps the ones no expectation consumed yet.
type wsTestClient struct {
	t       *testing.T
	ctx     context.Context
	conn    *websocket.Conn
	pending []testFrame
}

func (e *testEnv) dial(t *testing.T, query string) *wsTestClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		wsURL += "?" + query
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsTestClient{t: t, ctx: ctx, conn: conn}
}

func (c *wsTestClient) send(typ string, data any) {
	c.t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(c.ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		c.t.Fatalf("send %s: %v", typ, err)
	}
}

// expect returns the first frame of the given event (or "error") accepted by match.
func (c *wsTestClient) expect(kind string, match func(testFrame) bool) testFrame {
	c.t.Helper()

	accept := func(f testFrame) bool {
		name := f.Event
		if f.Type == proto.OutboundTypeError {
			name = proto.OutboundTypeError
		}
		return name == kind && (match == nil || match(f))
	}

	for i, f := range c.pending {
		if accept(f) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return f
		}
	}
	for {
		var f testFrame
		if err := wsjson.Read(c.ctx, c.conn, &f); err != nil {
			c.t.Fatalf("waiting for %s: %v", kind, err)
		}
		if accept(f) {
			return f
		}
		c.pending = append(c.pending, f)
	}
}

// expectNone fails if a frame of the given kind arrives within wait. The
// timed-out read closes the connection, so call it last.
func (c *wsTestClient) expectNone(kind string, wait time.Duration) {
	c.t.Helper()

	for _, f := range c.pending {
		if f.Event == kind || (kind == proto.OutboundTypeError && f.Type == kind) {
			c.t.Fatalf("unexpected %s frame: %+v", kind, f)
		}
	}

	ctx, cancel := context.WithTimeout(c.ctx, wait)
	defer cancel()
	for {
		var f testFrame
		if err := wsjson.Read(ctx, c.conn, &f); err != nil {
			return
		}
		if f.Event == kind || (kind == proto.OutboundTypeError && f.Type == kind) {
			c.t.Fatalf("unexpected %s frame: %+v", kind, f)
		}
		c.pending = append(c.pending, f)
	}
}

func loaded(room string, count int) func(testFrame) bool {
	return func(f testFrame) bool {
		var data proto.EventSnapshotData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return false
		}
		return data.Room == room && !data.Loading && len(data.Messages) == count
	}
}
