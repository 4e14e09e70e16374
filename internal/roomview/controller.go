package roomview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store"
)

// ErrInactive is returned when an operation needs an active room.
var ErrInactive = errors.New("room view is not active")

// Gateway is the part of the message store gateway the controller uses.
type Gateway interface {
	Subscribe(ctx context.Context, room string) (*gateway.Subscription, error)
	Submit(ctx context.Context, draft gateway.Draft, room string) (string, error)
}

// Options tune controller behavior.
type Options struct {
	MaxLength     int
	AlertDuration time.Duration
	LoginPath     string
	HomePath      string
	Location      *time.Location
}

// DefaultOptions mirror config.Default.
func DefaultOptions() Options {
	return Options{
		MaxLength:     100,
		AlertDuration: 2200 * time.Millisecond,
		LoginPath:     "/login",
		HomePath:      "/home",
		Location:      time.Local,
	}
}

// SendOutcome says what Send did with the input buffer.
type SendOutcome int

const (
	// SendSkipped means the buffer was empty.
	SendSkipped SendOutcome = iota
	// SendTruncated means the buffer was over the limit, was cut and an alert shown.
	SendTruncated
	// SendRedirected means nobody was signed in and the view was sent to login.
	SendRedirected
	// SendSubmitted means the message was stored and the buffer cleared.
	SendSubmitted
	// SendFailed means the gateway rejected the message; the buffer is kept.
	SendFailed
)

func (o SendOutcome) String() string {
	switch o {
	case SendSkipped:
		return "skipped"
	case SendTruncated:
		return "truncated"
	case SendRedirected:
		return "redirected"
	case SendSubmitted:
		return "submitted"
	case SendFailed:
		return "failed"
	default:
		return fmt.Sprintf("SendOutcome(%d)", int(o))
	}
}

// SendResult reports a Send call. ID is set for SendSubmitted.
type SendResult struct {
	Outcome SendOutcome
	ID      string
}

// activation holds the resources of one Activate call.
type activation struct {
	cancel      context.CancelFunc
	sub         *gateway.Subscription
	stopSession func()
	done        chan struct{}
}

// Controller owns the chat state of one room view.
type Controller struct {
	gw       Gateway
	sessions session.Provider
	view     View
	opts     Options
	log      *zerolog.Logger

	mu     sync.Mutex
	state  State
	active *activation
}

// New builds a controller. Nothing is subscribed until Activate.
func New(gw Gateway, sessions session.Provider, view View, opts Options, logger *zerolog.Logger) *Controller {
	def := DefaultOptions()
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	if opts.AlertDuration <= 0 {
		opts.AlertDuration = def.AlertDuration
	}
	if opts.LoginPath == "" {
		opts.LoginPath = def.LoginPath
	}
	if opts.HomePath == "" {
		opts.HomePath = def.HomePath
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Controller{
		gw:       gw,
		sessions: sessions,
		view:     view,
		opts:     opts,
		log:      logger,
		state:    State{Loading: true},
	}
}

// Activate starts following room. A previous room is torn down first and its
// messages are discarded.
func (c *Controller) Activate(ctx context.Context, room string) error {
	c.Teardown()

	actx, cancel := context.WithCancel(ctx)
	sub, err := c.gw.Subscribe(actx, room)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", room, err)
	}
	users, stopSession := c.sessions.Watch(actx)

	act := &activation{
		cancel:      cancel,
		sub:         sub,
		stopSession: stopSession,
		done:        make(chan struct{}),
	}

	c.mu.Lock()
	c.state.Room = room
	c.state.User = c.sessions.Current().Email
	c.state.Loading = true
	c.state.Messages = nil
	c.active = act
	c.mu.Unlock()

	c.log.Debug().Str("room", room).Msg("room view activated")
	go c.run(actx, act, users)
	return nil
}

// run applies session changes and snapshots one at a time, in arrival order.
func (c *Controller) run(ctx context.Context, act *activation, users <-chan session.User) {
	defer close(act.done)

	snapshots := act.sub.Snapshots()
	for users != nil || snapshots != nil {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-users:
			if !ok {
				users = nil
				continue
			}
			c.applyUser(u)
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			c.applySnapshot(snap)
		}
	}
}

func (c *Controller) applyUser(u session.User) {
	c.mu.Lock()
	changed := c.state.User != u.Email
	c.state.User = u.Email
	state := c.snapshotState()
	c.mu.Unlock()

	if changed {
		c.view.Render(state)
	}
}

func (c *Controller) applySnapshot(snap gateway.Snapshot) {
	if snap.Err != nil {
		// Keep what is on screen; the next change retries the query.
		c.log.Warn().Err(snap.Err).Str("room", snap.Room).Msg("room snapshot failed")
		return
	}

	c.mu.Lock()
	if snap.Messages == nil {
		c.state.Messages = []store.Message{}
		state := c.snapshotState()
		c.mu.Unlock()
		c.view.Render(state)
		return
	}
	c.state.Messages = slices.Clone(snap.Messages)
	c.state.Loading = false
	state := c.snapshotState()
	c.mu.Unlock()

	c.view.Render(state)
	c.view.Rendered()
}

// snapshotState copies the state for rendering. Callers hold c.mu.
func (c *Controller) snapshotState() State {
	s := c.state
	s.Messages = slices.Clone(c.state.Messages)
	return s
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotState()
}

// SetInput replaces the input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.state.Input = text
	c.mu.Unlock()
}

// Send submits the input buffer as a message from the current user.
//
// Over-long input is cut to the limit and an alert is shown instead of
// sending. Anonymous senders are navigated to the login path with their
// input kept. A gateway failure, or a send with no active room, is returned
// with SendFailed.
func (c *Controller) Send(ctx context.Context) (SendResult, error) {
	c.mu.Lock()
	text := c.state.Input

	if Length(text) > c.opts.MaxLength {
		c.state.Input = truncate(text, c.opts.MaxLength)
		state := c.snapshotState()
		c.mu.Unlock()

		c.view.Alert(Alert{
			Title:    "Ups!",
			Text:     fmt.Sprintf("Message cannot exceed %d characters", c.opts.MaxLength),
			Severity: SeverityError,
			Duration: c.opts.AlertDuration,
		})
		c.view.Render(state)
		return c.record(SendResult{Outcome: SendTruncated}), nil
	}

	if text == "" {
		c.mu.Unlock()
		return c.record(SendResult{Outcome: SendSkipped}), nil
	}

	user, room := c.state.User, c.state.Room
	c.mu.Unlock()

	if room == "" {
		return c.record(SendResult{Outcome: SendFailed}), ErrInactive
	}
	if user == "" {
		c.log.Debug().Str("room", room).Msg("anonymous send, redirecting to login")
		c.view.Navigate(c.opts.LoginPath)
		return c.record(SendResult{Outcome: SendRedirected}), nil
	}

	id, err := c.gw.Submit(ctx, gateway.Draft{Content: text, Author: user}, room)
	if err != nil {
		c.log.Error().Err(err).Str("room", room).Str("user", user).Msg("submit message failed")
		return c.record(SendResult{Outcome: SendFailed}), fmt.Errorf("submit message: %w", err)
	}

	c.mu.Lock()
	c.state.Input = ""
	state := c.snapshotState()
	c.mu.Unlock()

	c.view.Render(state)
	return c.record(SendResult{Outcome: SendSubmitted, ID: id}), nil
}

func (c *Controller) record(res SendResult) SendResult {
	metrics.SendOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	return res
}

// Teardown releases the live subscriptions and clears the room. It is
// idempotent. Submissions already in flight are not canceled.
func (c *Controller) Teardown() {
	c.mu.Lock()
	act := c.active
	c.active = nil
	room := c.state.Room
	c.state.Room = ""
	c.state.Messages = nil
	c.state.Loading = true
	c.mu.Unlock()

	if act == nil {
		return
	}

	act.cancel()
	act.sub.Close()
	act.stopSession()
	<-act.done

	c.log.Debug().Str("room", room).Msg("room view torn down")
}

// GoHome navigates to the home path and tears the view down.
func (c *Controller) GoHome() {
	c.view.Navigate(c.opts.HomePath)
	c.Teardown()
}

// IsOwnMessage reports whether m was written by the signed-in user.
func (c *Controller) IsOwnMessage(m store.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.User != "" && m.Author == c.state.User
}

// FormatTimestamp renders ts in the controller's location.
func (c *Controller) FormatTimestamp(ts store.Timestamp) string {
	return FormatTimestamp(ts, c.opts.Location)
}
