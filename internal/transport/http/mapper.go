package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/roomview"
	"github.com/vovakirdan/roomchat/internal/store"
)

// messagesToEvents maps stored messages to wire messages. owner marks the
// messages written by the signed-in user; empty means nobody.
func messagesToEvents(msgs []store.Message, loc *time.Location, owner string) []proto.EventMessage {
	out := make([]proto.EventMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, proto.EventMessage{
			ID:        m.ID,
			Content:   m.Content,
			Author:    m.Author,
			Timestamp: m.Timestamp,
			Display:   roomview.FormatTimestamp(m.Timestamp, loc),
			Own:       owner != "" && m.Author == owner,
		})
	}
	return out
}

func snapshotEvent(state roomview.State, loc *time.Location) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventSnapshot,
		Data: proto.EventSnapshotData{
			Room:     state.Room,
			User:     state.User,
			Loading:  state.Loading,
			Messages: messagesToEvents(state.Messages, loc, state.User),
		},
	}
}

func inputEvent(text string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventInput,
		Data:  proto.EventInputData{Text: text},
	}
}

func navigateEvent(path string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventNavigate,
		Data:  proto.EventNavigateData{Path: path},
	}
}

func alertEvent(alert roomview.Alert) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventAlert,
		Data: proto.EventAlertData{
			Title:   alert.Title,
			Text:    alert.Text,
			Icon:    string(alert.Severity),
			TimerMS: alert.Duration.Milliseconds(),
		},
	}
}

func scrollEvent() proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventScroll}
}

func sentEvent(id string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventSent,
		Data:  proto.EventSentData{ID: id},
	}
}

func errorFrame(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

// decodeData unmarshals an inbound payload. A missing payload leaves dst untouched.
func decodeData(inbound proto.Inbound, dst any) *proto.Error {
	if len(inbound.Data) == 0 || string(inbound.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(inbound.Data, dst); err != nil {
		return &proto.Error{
			Code: proto.ErrCodeBadRequest,
			Msg:  fmt.Sprintf("malformed %s payload", inbound.Type),
		}
	}
	return nil
}
