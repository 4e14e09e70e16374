package session

import (
	"context"
	"sync"
)

// User identifies the signed-in account. The zero value is the anonymous user.
type User struct {
	Email string
}

// Anonymous reports whether no one is signed in.
func (u User) Anonymous() bool {
	return u.Email == ""
}

// Provider is a live source of the current user.
type Provider interface {
	// Current returns the user at this moment.
	Current() User

	// Watch streams the current user, starting with the present value. Only
	// the latest value is kept for a slow reader. The channel is closed once
	// stop is called or ctx is done.
	Watch(ctx context.Context) (users <-chan User, stop func())
}

// Broadcaster is a Provider whose user is set explicitly, e.g. after a token is verified.
type Broadcaster struct {
	mu       sync.Mutex
	current  User
	watchers map[chan User]struct{}
}

// NewBroadcaster creates a provider holding the given user.
func NewBroadcaster(initial User) *Broadcaster {
	return &Broadcaster{
		current:  initial,
		watchers: make(map[chan User]struct{}),
	}
}

// Current returns the user at this moment.
func (b *Broadcaster) Current() User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// SignIn records user and notifies watchers.
func (b *Broadcaster) SignIn(user User) {
	b.set(user)
}

// SignOut clears the user and notifies watchers.
func (b *Broadcaster) SignOut() {
	b.set(User{})
}

func (b *Broadcaster) set(user User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = user
	for ch := range b.watchers {
		replace(ch, user)
	}
}

// Watch streams user changes.
func (b *Broadcaster) Watch(ctx context.Context) (<-chan User, func()) {
	ch := make(chan User, 1)

	b.mu.Lock()
	ch <- b.current
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	stop := sync.OnceFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, ch)
		close(ch)
	})
	context.AfterFunc(ctx, stop)

	return ch, stop
}

// replace overwrites a pending value so readers only see the latest user.
// Callers hold the broadcaster lock, which makes them the only sender.
func replace(ch chan User, user User) {
	select {
	case ch <- user:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- user
}
