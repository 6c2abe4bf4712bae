package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/huddlehq/huddle/id"
)

// Redis key layout, all under "huddle:queue:{name}:".
//
//	...:ready    List of job IDs eligible for immediate dequeue
//	...:delayed  Sorted Set of job IDs scored by maturity time (unix ms)
//	...:attempts Hash of job ID → delivery count
const redisKeyPrefix = "huddle:queue:"

// DefaultPollInterval bounds how long a blocked Dequeue waits on Redis
// before promoting matured delayed items again.
const DefaultPollInterval = time.Second

// Redis is a Queue backed by a Redis list with a sorted-set delay lane.
// Multiple processes may share one queue name; BRPOP gives each ready
// item to exactly one of them.
type Redis struct {
	client goredis.Cmdable
	name   string
	logger *slog.Logger
	poll   time.Duration
	closed atomic.Bool
}

var _ Queue = (*Redis)(nil)

// RedisOption configures the Redis queue.
type RedisOption func(*Redis)

// WithRedisLogger sets a custom logger.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// WithPollInterval sets the BRPOP timeout and delayed-lane promotion
// cadence.
func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.poll = d }
}

// NewRedis creates a Redis-backed queue. The caller owns the Redis
// client lifecycle.
func NewRedis(client goredis.Cmdable, name string, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		name:   name,
		logger: slog.Default(),
		poll:   DefaultPollInterval,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Redis) readyKey() string    { return redisKeyPrefix + r.name + ":ready" }
func (r *Redis) delayedKey() string  { return redisKeyPrefix + r.name + ":delayed" }
func (r *Redis) attemptsKey() string { return redisKeyPrefix + r.name + ":attempts" }

func (r *Redis) Enqueue(ctx context.Context, jobID id.JobID) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.LPush(ctx, r.readyKey(), jobID.String()).Err(); err != nil {
		return fmt.Errorf("huddle/queue: enqueue: %w", err)
	}
	return nil
}

func (r *Redis) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if r.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.promote(ctx); err != nil {
			return nil, err
		}

		res, err := r.client.BRPop(ctx, r.poll, r.readyKey()).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue // timed out, promote again
			}
			return nil, fmt.Errorf("huddle/queue: dequeue: %w", err)
		}
		// BRPop returns [key, value].
		raw := res[1]

		jobID, err := id.ParseJobID(raw)
		if err != nil {
			r.logger.Warn("dropping malformed queue entry", "queue", r.name, "entry", raw, "error", err)
			continue
		}

		attempt, err := r.client.HIncrBy(ctx, r.attemptsKey(), raw, 1).Result()
		if err != nil {
			return nil, fmt.Errorf("huddle/queue: dequeue attempt count: %w", err)
		}
		return &Delivery{JobID: jobID, Attempt: int(attempt)}, nil
	}
}

func (r *Redis) Ack(ctx context.Context, d *Delivery) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.HDel(ctx, r.attemptsKey(), d.JobID.String()).Err(); err != nil {
		return fmt.Errorf("huddle/queue: ack: %w", err)
	}
	return nil
}

func (r *Redis) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	if r.closed.Load() {
		return ErrClosed
	}
	readyAt := time.Now().Add(delay)
	err := r.client.ZAdd(ctx, r.delayedKey(), goredis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: d.JobID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("huddle/queue: nack: %w", err)
	}
	return nil
}

// Close marks the queue closed. The caller owns the Redis client
// lifecycle; blocked Dequeues return once their poll interval elapses.
func (r *Redis) Close() error {
	r.closed.Store(true)
	return nil
}

// promote moves matured delayed items into the ready list.
func (r *Redis) promote(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	due, err := r.client.ZRangeByScore(ctx, r.delayedKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("huddle/queue: promote: %w", err)
	}
	for _, member := range due {
		// Remove first so a concurrent promoter cannot double-push.
		removed, zErr := r.client.ZRem(ctx, r.delayedKey(), member).Result()
		if zErr != nil {
			return fmt.Errorf("huddle/queue: promote zrem: %w", zErr)
		}
		if removed == 0 {
			continue
		}
		if pErr := r.client.LPush(ctx, r.readyKey(), member).Err(); pErr != nil {
			return fmt.Errorf("huddle/queue: promote lpush: %w", pErr)
		}
	}
	return nil
}
