// Package livequery carries "this room changed" signals from writers to live
// query subscribers. Signals carry no payload: subscribers re-read the room and
// emit a full snapshot, so a dropped or merged signal never loses data.
package livequery

import (
	"context"
	"sync"
)

// Notifier publishes and listens for room change signals.
type Notifier interface {
	// Publish signals every listener of room that its contents changed.
	Publish(ctx context.Context, room string) error

	// Listen returns a channel that receives a value after each change to room.
	// Pending signals are coalesced. The channel is closed once stop is called
	// or ctx is done.
	Listen(ctx context.Context, room string) (signals <-chan struct{}, stop func(), err error)

	// Close releases resources held by the notifier.
	Close() error
}

// signal performs a coalescing, non-blocking send.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
		// A signal is already pending.
	}
}

// Local fans out change signals inside a single process.
type Local struct {
	mu    sync.Mutex
	rooms map[string]map[chan struct{}]struct{}
}

// NewLocal creates an in-process notifier.
func NewLocal() *Local {
	return &Local{rooms: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals all listeners of room.
func (l *Local) Publish(_ context.Context, room string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ch := range l.rooms[room] {
		signal(ch)
	}
	return nil
}

// Listen registers a listener for room.
func (l *Local) Listen(ctx context.Context, room string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	listeners, ok := l.rooms[room]
	if !ok {
		listeners = make(map[chan struct{}]struct{})
		l.rooms[room] = listeners
	}
	listeners[ch] = struct{}{}
	l.mu.Unlock()

	stop := sync.OnceFunc(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.rooms[room], ch)
		if len(l.rooms[room]) == 0 {
			delete(l.rooms, room)
		}
		close(ch)
	})
	context.AfterFunc(ctx, stop)

	return ch, stop, nil
}

// Listeners reports how many listeners room has.
func (l *Local) Listeners(room string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms[room])
}

// Close is a no-op for the in-process notifier.
func (l *Local) Close() error {
	return nil
}
