package proto

import (
	"encoding/json"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeHello = "hello"
	InboundTypeJoin  = "join"
	InboundTypeInput = "input"
	InboundTypeSend  = "send"
	InboundTypeHome  = "home"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSnapshot = "snapshot"
	EventNavigate = "navigate"
	EventAlert    = "alert"
	EventInput    = "input"
	EventSent     = "sent"
	EventScroll   = "scroll"
)

// HelloData signs the connection in. An empty token signs it out.
type HelloData struct {
	Token string `json:"token"`
}

// JoinData switches the connection to a room.
type JoinData struct {
	Room string `json:"room"`
}

// InputData replaces the input buffer.
type InputData struct {
	Text string `json:"text"`
}

// SendData sends the input buffer. When Text is set it replaces the buffer first.
type SendData struct {
	Text *string `json:"text,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventSnapshotData is the room as the client should render it.
type EventSnapshotData struct {
	Room     string         `json:"room"`
	User     string         `json:"user,omitempty"`
	Loading  bool           `json:"loading"`
	Messages []EventMessage `json:"messages"`
}

// EventMessage is one message of a snapshot.
type EventMessage struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Author    string          `json:"author"`
	Timestamp store.Timestamp `json:"timestamp"`
	Display   string          `json:"display"`
	Own       bool            `json:"own"`
}

// EventNavigateData asks the client to leave for Path.
type EventNavigateData struct {
	Path string `json:"path"`
}

// EventAlertData is a self-dismissing notification.
type EventAlertData struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Icon    string `json:"icon"`
	TimerMS int64  `json:"timer_ms"`
}

// EventInputData carries the server's copy of the input buffer.
type EventInputData struct {
	Text string `json:"text"`
}

// EventSentData acknowledges a stored message.
type EventSentData struct {
	ID string `json:"id"`
}

// Error codes carried by error frames.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalidRoom  = "invalid_room"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeSubmitFailed = "submit_failed"
	ErrCodeUnknownType  = "invalid_message"
	ErrCodeInternal     = "internal"
)

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Msg
}
