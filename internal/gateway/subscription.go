package gateway

import (
	"sync"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Snapshot is the complete ordered contents of a room at one point in time.
// Messages is nil when the room contents are unknown: either Err is set or
// the source reported that no data is available.
type Snapshot struct {
	Room     string
	Messages []store.Message
	Err      error
}

// Subscription is a live sequence of snapshots for one room.
type Subscription struct {
	room      string
	snapshots <-chan Snapshot
	once      sync.Once
	release   func()
}

// NewSubscription wraps a snapshot source. release is called once, on the first Close.
func NewSubscription(room string, snapshots <-chan Snapshot, release func()) *Subscription {
	return &Subscription{room: room, snapshots: snapshots, release: release}
}

// Room returns the partition this subscription follows.
func (s *Subscription) Room() string {
	return s.room
}

// Snapshots returns the channel of snapshots. Gateway subscriptions close it after Close.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Close releases the live query. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
