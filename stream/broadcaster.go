package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/huddlehq/huddle/id"
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// meterName is the instrumentation scope name for stream metrics.
const meterName = "github.com/huddlehq/huddle"

// Membership resolves which sessions are in a room. Satisfied by
// session.Registry.
type Membership interface {
	MembersOf(roomID string) []id.SessionID
}

// Broadcaster delivers events to every subscribed session of a room.
// Delivery is fire-and-forget: per-recipient drops are counted and logged,
// never surfaced to the caller.
type Broadcaster struct {
	members Membership
	logger  *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]*Subscriber // session ID → subscriber

	bufferSize int

	totalDelivered atomic.Int64
	totalDropped   atomic.Int64

	deliveredCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BroadcasterOption {
	return func(b *Broadcaster) { b.bufferSize = size }
}

// NewBroadcaster creates a broadcaster resolving room membership through
// the given source.
func NewBroadcaster(members Membership, logger *slog.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		members:     members,
		logger:      logger,
		subscribers: make(map[string]*Subscriber),
		bufferSize:  DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	// If no global MeterProvider is configured these are noop
	// instruments, so recording stays free.
	meter := otel.Meter(meterName)
	b.deliveredCounter, _ = meter.Int64Counter(
		"huddle.stream.events_delivered",
		metric.WithDescription("Events delivered to subscribers"),
		metric.WithUnit("{event}"),
	)
	b.droppedCounter, _ = meter.Int64Counter(
		"huddle.stream.events_dropped",
		metric.WithDescription("Events dropped for slow subscribers"),
		metric.WithUnit("{event}"),
	)
	return b
}

// Attach creates the outbound subscriber for a session. Attaching the
// same session again returns the existing subscriber.
func (b *Broadcaster) Attach(sessionID id.SessionID) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := sessionID.String()
	if sub, ok := b.subscribers[key]; ok {
		return sub
	}
	sub := NewSubscriber(sessionID, b.bufferSize)
	b.subscribers[key] = sub
	return sub
}

// Detach removes and closes a session's subscriber. Detaching an unknown
// session is a no-op.
func (b *Broadcaster) Detach(sessionID id.SessionID) {
	b.mu.Lock()
	sub, ok := b.subscribers[sessionID.String()]
	if ok {
		delete(b.subscribers, sessionID.String())
	}
	b.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Broadcast delivers the event to every session currently in the room,
// excluding exclude when it is non-nil. The call never fails; recipients
// whose buffers are full are skipped and counted.
func (b *Broadcaster) Broadcast(roomID string, evt *Event, exclude id.SessionID) {
	members := b.members.MembersOf(roomID)
	if len(members) == 0 {
		return
	}

	excludeKey := exclude.String()

	b.mu.RLock()
	targets := make([]*Subscriber, 0, len(members))
	for _, sid := range members {
		key := sid.String()
		if excludeKey != "" && key == excludeKey {
			continue
		}
		if sub, ok := b.subscribers[key]; ok {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	attrs := metric.WithAttributes(attribute.String("event_type", string(evt.Type)))
	for _, sub := range targets {
		if sub.send(evt) {
			b.totalDelivered.Add(1)
			b.deliveredCounter.Add(context.Background(), 1, attrs)
			continue
		}
		b.totalDropped.Add(1)
		b.droppedCounter.Add(context.Background(), 1, attrs)
		b.logger.Warn("event dropped for slow subscriber",
			slog.String("session_id", sub.SessionID().String()),
			slog.String("room_id", roomID),
			slog.String("event_type", string(evt.Type)),
		)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns cumulative delivered and dropped event counts.
func (b *Broadcaster) Stats() (delivered, dropped int64) {
	return b.totalDelivered.Load(), b.totalDropped.Load()
}
