package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/roomview"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store"
)

const outboundBuffer = 32

// WSHandler upgrades HTTP connections and hosts one room view per connection.
type WSHandler struct {
	gw          roomview.Gateway
	authService *auth.Service
	opts        roomview.Options
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gw roomview.Gateway, authService *auth.Service, opts roomview.Options, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		gw:          gw,
		authService: authService,
		opts:        opts,
		log:         logger,
	}
}

// wsClient is the per-connection state shared by the read and write loops.
type wsClient struct {
	id       string
	out      chan proto.Outbound
	sessions *session.Broadcaster
	ctrl     *roomview.Controller
	log      zerolog.Logger
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.NewString()
	client := &wsClient{
		id:       id,
		out:      make(chan proto.Outbound, outboundBuffer),
		sessions: session.NewBroadcaster(session.User{}),
		log:      h.log.With().Str("client_id", id).Logger(),
	}
	view := &wsView{ctx: ctx, out: client.out, loc: h.opts.Location}
	client.ctrl = roomview.New(h.gw, client.sessions, view, h.opts, &client.log)
	defer client.ctrl.Teardown()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	query := r.URL.Query()
	if token := query.Get("token"); token != "" {
		h.handleHello(ctx, client, proto.HelloData{Token: token})
	}
	if room := query.Get("room"); room != "" {
		h.handleJoin(ctx, client, proto.JoinData{Room: room})
	}

	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			client.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			client.log.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeHello:
			var hello proto.HelloData
			if perr := decodeData(inbound, &hello); perr != nil {
				client.fail(ctx, perr)
				continue
			}
			h.handleHello(ctx, client, hello)
		case proto.InboundTypeJoin:
			var join proto.JoinData
			if perr := decodeData(inbound, &join); perr != nil {
				client.fail(ctx, perr)
				continue
			}
			h.handleJoin(ctx, client, join)
		case proto.InboundTypeInput:
			var input proto.InputData
			if perr := decodeData(inbound, &input); perr != nil {
				client.fail(ctx, perr)
				continue
			}
			client.ctrl.SetInput(input.Text)
		case proto.InboundTypeSend:
			var send proto.SendData
			if perr := decodeData(inbound, &send); perr != nil {
				client.fail(ctx, perr)
				continue
			}
			h.handleSend(ctx, client, send)
		case proto.InboundTypeHome:
			client.ctrl.GoHome()
		default:
			client.fail(ctx, &proto.Error{Code: proto.ErrCodeUnknownType, Msg: "unknown message type"})
		}
	}
}

func (h *WSHandler) handleHello(ctx context.Context, client *wsClient, hello proto.HelloData) {
	if hello.Token == "" {
		client.sessions.SignOut()
		client.log.Debug().Msg("signed out")
		return
	}

	claims, err := h.authService.ValidateToken(hello.Token)
	if err != nil {
		client.log.Debug().Err(err).Msg("invalid token")
		client.fail(ctx, &proto.Error{Code: proto.ErrCodeUnauthorized, Msg: "invalid token"})
		return
	}
	client.sessions.SignIn(session.User{Email: claims.Email})
	client.log.Debug().Str("user", claims.Email).Msg("signed in")
}

func (h *WSHandler) handleJoin(ctx context.Context, client *wsClient, join proto.JoinData) {
	err := client.ctrl.Activate(ctx, join.Room)
	if err == nil {
		return
	}
	if errors.Is(err, gateway.ErrInvalidRoom) {
		client.fail(ctx, &proto.Error{Code: proto.ErrCodeInvalidRoom, Msg: "invalid room"})
		return
	}
	client.log.Error().Err(err).Str("room", join.Room).Msg("join room failed")
	client.fail(ctx, &proto.Error{Code: proto.ErrCodeInternal, Msg: "could not open room"})
}

func (h *WSHandler) handleSend(ctx context.Context, client *wsClient, send proto.SendData) {
	if send.Text != nil {
		client.ctrl.SetInput(*send.Text)
	}

	res, err := client.ctrl.Send(ctx)
	switch {
	case errors.Is(err, roomview.ErrInactive):
		client.fail(ctx, &proto.Error{Code: proto.ErrCodeNotInRoom, Msg: "join a room first"})
	case err != nil:
		client.fail(ctx, &proto.Error{Code: proto.ErrCodeSubmitFailed, Msg: "message could not be sent"})
	case res.Outcome == roomview.SendSubmitted:
		client.emit(ctx, sentEvent(res.ID))
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		select {
		case frame := <-client.out:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				client.log.Error().Err(err).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *wsClient) emit(ctx context.Context, frame proto.Outbound) {
	select {
	case c.out <- frame:
	case <-ctx.Done():
	}
}

func (c *wsClient) fail(ctx context.Context, perr *proto.Error) {
	c.emit(ctx, errorFrame(perr.Code, perr.Msg))
}

// wsView renders controller state as outbound frames. Snapshot frames are
// only sent when the room part of the state changed; an input frame when
// the buffer did.
type wsView struct {
	ctx context.Context
	out chan<- proto.Outbound
	loc *time.Location

	mu      sync.Mutex
	last    roomview.State
	started bool
}

func (v *wsView) Render(state roomview.State) {
	v.mu.Lock()
	roomChanged := !v.started ||
		state.Room != v.last.Room ||
		state.User != v.last.User ||
		state.Loading != v.last.Loading ||
		(state.Messages == nil) != (v.last.Messages == nil) ||
		!slices.EqualFunc(state.Messages, v.last.Messages, sameMessage)
	inputChanged := v.started && state.Input != v.last.Input
	v.last = state
	v.started = true
	v.mu.Unlock()

	if roomChanged {
		v.send(snapshotEvent(state, v.loc))
	}
	if inputChanged {
		v.send(inputEvent(state.Input))
	}
}

func (v *wsView) Rendered() {
	v.send(scrollEvent())
}

func (v *wsView) Navigate(path string) {
	v.send(navigateEvent(path))
}

func (v *wsView) Alert(alert roomview.Alert) {
	v.send(alertEvent(alert))
}

func (v *wsView) send(frame proto.Outbound) {
	select {
	case v.out <- frame:
	case <-v.ctx.Done():
	}
}

func sameMessage(a, b store.Message) bool {
	return a.ID == b.ID && a.Content == b.Content && a.Author == b.Author
}
