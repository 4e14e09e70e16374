package livequery

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "roomchat:room:"

// Redis shares change signals between server instances over Redis Pub/Sub.
type Redis struct {
	client *redis.Client
	log    *zerolog.Logger
}

// NewRedis connects to the Redis server at redisURL.
func NewRedis(ctx context.Context, redisURL string, logger *zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisWithClient(client, logger), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, logger *zerolog.Logger) *Redis {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Redis{client: client, log: logger}
}

func roomChannel(room string) string {
	return channelPrefix + room
}

// Publish sends a change signal for room to every instance.
func (r *Redis) Publish(ctx context.Context, room string) error {
	if err := r.client.Publish(ctx, roomChannel(room), "changed").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

// Listen subscribes to change signals for room.
func (r *Redis) Listen(ctx context.Context, room string) (<-chan struct{}, func(), error) {
	pubsub := r.client.Subscribe(ctx, roomChannel(room))

	// Wait for the subscription confirmation so no publish after Listen returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", room, err)
	}

	out := make(chan struct{}, 1)
	stop := sync.OnceFunc(func() {
		if err := pubsub.Close(); err != nil {
			r.log.Debug().Err(err).Str("room", room).Msg("close redis subscription")
		}
	})
	context.AfterFunc(ctx, stop)

	go func() {
		defer close(out)
		for range pubsub.Channel() {
			signal(out)
		}
	}()

	return out, stop, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
