package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/livequery"
	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/store"
)

// MaxRoomNameLength bounds room partition names.
const MaxRoomNameLength = 64

const publishTimeout = 2 * time.Second

var (
	// ErrInvalidDraft is returned when a draft or room fails validation.
	ErrInvalidDraft = errors.New("invalid draft")
	// ErrInvalidRoom is returned when a room name fails validation.
	ErrInvalidRoom = errors.New("invalid room")
)

// Draft is a message that has not been stored yet.
type Draft struct {
	Content string
	Author  string
}

type submission struct {
	Room    string `validate:"roomname"`
	Content string `validate:"required"`
}

type roomRef struct {
	Room string `validate:"roomname"`
}

// Gateway mediates all reads and writes of room messages.
type Gateway struct {
	store    store.MessageStore
	notifier livequery.Notifier
	validate *validator.Validate
	log      *zerolog.Logger
}

// New builds a gateway over a message store and a change notifier.
func New(st store.MessageStore, notifier livequery.Notifier, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gateway{
		store:    st,
		notifier: notifier,
		validate: newValidator(),
		log:      logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Names must be non-blank and bounded; anything else is an opaque partition key.
	err := v.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return strings.TrimSpace(name) != "" && len([]rune(name)) <= MaxRoomNameLength
	})
	if err != nil {
		panic(fmt.Sprintf("gateway: register roomname validation: %v", err))
	}
	return v
}

// ValidateRoom checks a room name without touching the store.
func (g *Gateway) ValidateRoom(room string) error {
	if err := g.validate.Struct(roomRef{Room: room}); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	return nil
}

// Submit appends a message to room and returns the store-assigned identifier.
// The write is not canceled by ctx once validation has passed.
func (g *Gateway) Submit(ctx context.Context, draft Draft, room string) (string, error) {
	if err := g.validate.Struct(submission{Room: room, Content: draft.Content}); err != nil {
		metrics.SubmitFailures.Inc()
		return "", fmt.Errorf("%w: %s", ErrInvalidDraft, describe(err))
	}

	writeCtx := context.WithoutCancel(ctx)
	msg, err := g.store.AppendMessage(writeCtx, room, draft.Content, draft.Author)
	if err != nil {
		metrics.SubmitFailures.Inc()
		g.log.Error().Err(err).Str("room", room).Str("author", draft.Author).Msg("append message failed")
		return "", fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesSubmitted.Inc()

	pubCtx, cancel := context.WithTimeout(writeCtx, publishTimeout)
	defer cancel()
	if err := g.notifier.Publish(pubCtx, room); err != nil {
		// The message is stored; subscribers catch up on the next change.
		g.log.Warn().Err(err).Str("room", room).Msg("publish change signal failed")
	}

	g.log.Debug().Str("room", room).Str("id", msg.ID).Msg("message submitted")
	return msg.ID, nil
}

// Snapshot reads the current ordered contents of room once.
func (g *Gateway) Snapshot(ctx context.Context, room string) ([]store.Message, error) {
	if err := g.ValidateRoom(room); err != nil {
		return nil, err
	}
	return g.load(ctx, room)
}

// Subscribe opens a live query on room. The subscription delivers an initial
// snapshot and a new complete snapshot after every change, until it is closed
// or ctx is done.
func (g *Gateway) Subscribe(ctx context.Context, room string) (*Subscription, error) {
	if err := g.ValidateRoom(room); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	signals, stop, err := g.notifier.Listen(ctx, room)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("listen %s: %w", room, err)
	}

	out := make(chan Snapshot, 1)
	done := make(chan struct{})
	metrics.ActiveSubscriptions.Inc()

	go func() {
		defer close(done)
		defer close(out)
		defer metrics.ActiveSubscriptions.Dec()
		defer stop()

		g.deliver(out, g.query(ctx, room))
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				g.deliver(out, g.query(ctx, room))
			}
		}
	}()

	return NewSubscription(room, out, func() {
		cancel()
		<-done
	}), nil
}

func (g *Gateway) query(ctx context.Context, room string) Snapshot {
	msgs, err := g.load(ctx, room)
	if err != nil {
		if ctx.Err() == nil {
			metrics.SnapshotErrors.Inc()
			g.log.Warn().Err(err).Str("room", room).Msg("live query failed")
		}
		return Snapshot{Room: room, Err: err}
	}
	metrics.SnapshotsDelivered.Inc()
	return Snapshot{Room: room, Messages: msgs}
}

func (g *Gateway) load(ctx context.Context, room string) ([]store.Message, error) {
	rows, err := g.store.ListMessages(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]store.Message, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

// deliver replaces an undelivered snapshot with a newer one. It must only be
// called from the subscription's producer goroutine.
func (g *Gateway) deliver(out chan Snapshot, snap Snapshot) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- snap
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
