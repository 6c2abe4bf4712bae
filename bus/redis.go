package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Bus over Redis PUBLISH/SUBSCRIBE. All backend processes of a
// deployment share one channel; Redis fans every message out to every
// subscribed process. The caller owns the client lifecycle.
type Redis struct {
	client *goredis.Client
	logger *slog.Logger
}

var _ Bus = (*Redis)(nil)

// RedisOption configures the Redis bus.
type RedisOption func(*Redis)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis creates a Redis-backed bus.
func NewRedis(client *goredis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish JSON-encodes the envelope and publishes it on the channel.
func (r *Redis) Publish(ctx context.Context, channel string, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrTransport, channel, err)
	}
	return nil
}

// Subscribe opens a dedicated Redis subscription and pumps messages to the
// handler on a background goroutine until the subscription is closed.
// Messages that fail to decode are logged and skipped.
func (r *Redis) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, channel)

	// Force the subscription onto the wire before returning so callers
	// observe no gap between Subscribe returning and delivery starting.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrTransport, channel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("bus: dropping undecodable envelope",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			h(&env)
		}
	}()

	return &redisSubscription{pubsub: pubsub}, nil
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (r *Redis) Close() error { return nil }

type redisSubscription struct {
	pubsub *goredis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
