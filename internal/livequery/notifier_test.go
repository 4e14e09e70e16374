package livequery

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.True(t, ok, "signal channel closed unexpectedly")
	case <-time.After(2 * time.Second):
		t.Fatal("expected change signal")
	}
}

func assertNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected change signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalPublishReachesOnlyRoomListeners(t *testing.T) {
	ctx := context.Background()
	n := NewLocal()

	general, stopGeneral, err := n.Listen(ctx, "general")
	require.NoError(t, err)
	defer stopGeneral()

	random, stopRandom, err := n.Listen(ctx, "random")
	require.NoError(t, err)
	defer stopRandom()

	require.NoError(t, n.Publish(ctx, "general"))

	waitSignal(t, general)
	assertNoSignal(t, random)
}

func TestLocalCoalescesPendingSignals(t *testing.T) {
	ctx := context.Background()
	n := NewLocal()

	ch, stop, err := n.Listen(ctx, "general")
	require.NoError(t, err)
	defer stop()

	for range 5 {
		require.NoError(t, n.Publish(ctx, "general"))
	}

	waitSignal(t, ch)
	assertNoSignal(t, ch)
}

func TestLocalStopClosesAndUnregisters(t *testing.T) {
	n := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())

	ch, stop, err := n.Listen(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, 1, n.Listeners("general"))

	cancel()
	require.Eventually(t, func() bool { return n.Listeners("general") == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancellation")

	// Explicit stop after cancellation must be harmless.
	stop()
	require.NoError(t, n.Publish(context.Background(), "general"))
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("ROOMCHAT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ROOMCHAT_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := NewRedis(ctx, url, nil)
	require.NoError(t, err)
	defer n.Close()

	ch, stop, err := n.Listen(ctx, "general")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, "general"))
	waitSignal(t, ch)

	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
