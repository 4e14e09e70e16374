package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/log"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// frame is an outbound frame with the payload kept raw for typed decoding.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	logger := log.New("info")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_chat failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT from /api/login; empty stays anonymous")
	room := flag.String("room", "general", "room to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("room", *room)
	if *token != "" {
		q.Set("token", *token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s in room %s\n", *addr, *room)
	fmt.Println("Type messages and press Enter to send. /join <room>, /home, Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, logger)
	}()

	writeLoop(ctx, conn, logger)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	seen := make(map[string]bool)
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			logger.Error().Err(err).Msg("read error")
			return
		}

		if f.Type == proto.OutboundTypeError && f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventSnapshot:
			var snap proto.EventSnapshotData
			if err := json.Unmarshal(f.Data, &snap); err != nil {
				logger.Warn().Err(err).Msg("decode snapshot")
				continue
			}
			if snap.Loading {
				clear(seen)
				continue
			}
			for _, m := range snap.Messages {
				if seen[m.ID] {
					continue
				}
				seen[m.ID] = true
				marker := " "
				if m.Own {
					marker = "*"
				}
				fmt.Printf("%s[%s] %s: %s\n", marker, m.Display, m.Author, m.Content)
			}
		case proto.EventAlert:
			var alert proto.EventAlertData
			if err := json.Unmarshal(f.Data, &alert); err == nil {
				fmt.Printf("! %s %s\n", alert.Title, alert.Text)
			}
		case proto.EventNavigate:
			var nav proto.EventNavigateData
			if err := json.Unmarshal(f.Data, &nav); err == nil {
				fmt.Printf("-> %s\n", nav.Path)
			}
		case proto.EventInput:
			var in proto.EventInputData
			if err := json.Unmarshal(f.Data, &in); err == nil {
				fmt.Printf("(input is now %q)\n", in.Text)
			}
		case proto.EventSent, proto.EventScroll:
		default:
			logger.Debug().Str("event", f.Event).RawJSON("data", f.Data).Msg("unhandled event")
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var inbound proto.Inbound
			switch {
			case text == "/home":
				inbound = proto.Inbound{Type: proto.InboundTypeHome}
			case strings.HasPrefix(text, "/join "):
				inbound = encode(proto.InboundTypeJoin, proto.JoinData{Room: strings.TrimSpace(text[len("/join "):])})
			default:
				inbound = encode(proto.InboundTypeSend, proto.SendData{Text: &text})
			}

			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				logger.Error().Err(err).Msg("send error")
				return
			}
		}
	}
}

func encode(typ string, data any) proto.Inbound {
	payload, _ := json.Marshal(data)
	return proto.Inbound{Type: typ, Data: payload}
}
