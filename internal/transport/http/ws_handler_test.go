package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/roomchat/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	// One request so the route counter has a sample.
	health, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "roomchat_http_requests_total")
}

func TestWebSocketJoinDeliversSnapshot(t *testing.T) {
	env := startTestServer(t, testConfig())
	client := env.dial(t, "room=general")

	frame := client.expect(proto.EventSnapshot, loaded("general", 0))
	data := frame.snapshot(t)
	assert.Empty(t, data.User)
	assert.NotNil(t, data.Messages)

	client.expect(proto.EventScroll, nil)
}

func TestWebSocketSendAndBroadcast(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "alice@example.com")

	alice := env.dial(t, "room=general&token="+url.QueryEscape(token))
	bob := env.dial(t, "")
	bob.send(proto.InboundTypeJoin, proto.JoinData{Room: "general"})

	alice.expect(proto.EventSnapshot, loaded("general", 0))
	bob.expect(proto.EventSnapshot, loaded("general", 0))

	text := "hi there"
	alice.send(proto.InboundTypeSend, proto.SendData{Text: &text})

	sent := alice.expect(proto.EventSent, nil)
	var ack proto.EventSentData
	require.NoError(t, json.Unmarshal(sent.Data, &ack))
	require.NotEmpty(t, ack.ID)

	own := alice.expect(proto.EventSnapshot, loaded("general", 1)).snapshot(t)
	require.Len(t, own.Messages, 1)
	msg := own.Messages[0]
	assert.Equal(t, ack.ID, msg.ID)
	assert.Equal(t, "hi there", msg.Content)
	assert.Equal(t, "alice@example.com", msg.Author)
	assert.True(t, msg.Timestamp.IsSet())
	assert.Regexp(t, `^\d{2}/\d{2}/\d{2} - \d{2}:\d{2}$`, msg.Display)
	assert.True(t, msg.Own)

	other := bob.expect(proto.EventSnapshot, loaded("general", 1)).snapshot(t)
	assert.Equal(t, ack.ID, other.Messages[0].ID)
	assert.False(t, other.Messages[0].Own, "bob is anonymous")
	bob.expect(proto.EventScroll, nil)
}

func TestWebSocketAnonymousSendNavigatesToLogin(t *testing.T) {
	env := startTestServer(t, testConfig())
	client := env.dial(t, "room=general")
	client.expect(proto.EventSnapshot, loaded("general", 0))

	client.send(proto.InboundTypeInput, proto.InputData{Text: "hello"})
	client.send(proto.InboundTypeSend, proto.SendData{})

	nav := client.expect(proto.EventNavigate, nil)
	var data proto.EventNavigateData
	require.NoError(t, json.Unmarshal(nav.Data, &data))
	assert.Equal(t, "/login", data.Path)

	msgs, err := env.gw.Snapshot(client.ctx, "general")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWebSocketOverlongInputIsTruncated(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "carol@example.com")
	client := env.dial(t, "room=general&token="+url.QueryEscape(token))
	client.expect(proto.EventSnapshot, loaded("general", 0))

	long := strings.Repeat("x", 120)
	client.send(proto.InboundTypeSend, proto.SendData{Text: &long})

	alert := client.expect(proto.EventAlert, nil)
	var a proto.EventAlertData
	require.NoError(t, json.Unmarshal(alert.Data, &a))
	assert.Equal(t, "Ups!", a.Title)
	assert.Equal(t, "Message cannot exceed 100 characters", a.Text)
	assert.Equal(t, "error", a.Icon)
	assert.Equal(t, int64(2200), a.TimerMS)

	input := client.expect(proto.EventInput, nil)
	var in proto.EventInputData
	require.NoError(t, json.Unmarshal(input.Data, &in))
	assert.Len(t, in.Text, 100)

	msgs, err := env.gw.Snapshot(client.ctx, "general")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWebSocketProtocolErrors(t *testing.T) {
	env := startTestServer(t, testConfig())
	client := env.dial(t, "")

	client.send("shout", map[string]string{})
	f := client.expect(proto.OutboundTypeError, nil)
	assert.Equal(t, proto.ErrCodeUnknownType, f.Error.Code)

	client.send(proto.InboundTypeJoin, proto.JoinData{Room: "   "})
	f = client.expect(proto.OutboundTypeError, nil)
	assert.Equal(t, proto.ErrCodeInvalidRoom, f.Error.Code)

	client.send(proto.InboundTypeJoin, "not an object")
	f = client.expect(proto.OutboundTypeError, nil)
	assert.Equal(t, proto.ErrCodeBadRequest, f.Error.Code)
}

func TestWebSocketSendWithoutRoom(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "dave@example.com")
	client := env.dial(t, "token="+url.QueryEscape(token))

	text := "anyone?"
	client.send(proto.InboundTypeSend, proto.SendData{Text: &text})
	f := client.expect(proto.OutboundTypeError, nil)
	assert.Equal(t, proto.ErrCodeNotInRoom, f.Error.Code)
}

func TestWebSocketHomeLeavesRoom(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "erin@example.com")
	client := env.dial(t, "room=general&token="+url.QueryEscape(token))
	client.expect(proto.EventSnapshot, loaded("general", 0))

	client.send(proto.InboundTypeHome, struct{}{})
	nav := client.expect(proto.EventNavigate, nil)
	var data proto.EventNavigateData
	require.NoError(t, json.Unmarshal(nav.Data, &data))
	assert.Equal(t, "/home", data.Path)

	text := "still here?"
	client.send(proto.InboundTypeSend, proto.SendData{Text: &text})
	f := client.expect(proto.OutboundTypeError, nil)
	assert.Equal(t, proto.ErrCodeNotInRoom, f.Error.Code)
}

func TestWebSocketUpgradesNextToRouter(t *testing.T) {
	env := startTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws?room=general"
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// REST routes still go through gin on the same handler.
	health, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestWebSocketEveryValidSendIsSubmitted(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "kim@example.com")
	client := env.dial(t, "room=general&token="+url.QueryEscape(token))
	client.expect(proto.EventSnapshot, loaded("general", 0))

	const sends = 75
	for i := 0; i < sends; i++ {
		text := fmt.Sprintf("message %d", i)
		client.send(proto.InboundTypeSend, proto.SendData{Text: &text})
		client.expect(proto.EventSent, nil)
	}

	msgs, err := env.gw.Snapshot(client.ctx, "general")
	require.NoError(t, err)
	assert.Len(t, msgs, sends)
}
