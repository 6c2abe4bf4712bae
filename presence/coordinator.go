// Package presence coordinates the lifecycle of realtime workspace
// sessions: authenticate once at connect time, join a workspace room,
// relay live updates to the rest of the room, and clean up on disconnect.
//
// Same-process delivery goes through stream.Broadcaster and is always
// correct on its own; the bus echo is supplementary fan-out that lets
// peer processes replay the same events for their own connections.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/huddlehq/huddle/auth"
	"github.com/huddlehq/huddle/bus"
	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/session"
	"github.com/huddlehq/huddle/stream"
)

// DefaultChannel is the shared cross-process channel presence events are
// mirrored on.
const DefaultChannel = "workspace:events"

var (
	// ErrNotJoined is returned for room-scoped events from a session that
	// has not joined a workspace.
	ErrNotJoined = errors.New("presence: session has not joined a workspace")

	// ErrDisconnected is returned for any operation on a disconnected
	// client. Disconnection is terminal; reconnecting creates a new session.
	ErrDisconnected = errors.New("presence: session disconnected")

	// ErrUnknownEvent is returned for event types outside the realtime
	// protocol.
	ErrUnknownEvent = errors.New("presence: unknown event type")
)

// Coordinator owns the session registry and broadcaster for one process
// and keeps peer processes in sync through the bus.
type Coordinator struct {
	registry      *session.Registry
	broadcaster   *stream.Broadcaster
	bus           bus.Bus
	authenticator auth.Authenticator
	logger        *slog.Logger
	channel       string

	// origin identifies this process on the bus so its own envelopes are
	// skipped when they echo back.
	origin string

	mu      sync.Mutex
	started bool
	sub     bus.Subscription
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithChannel sets the shared bus channel name.
func WithChannel(channel string) Option {
	return func(c *Coordinator) { c.channel = channel }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a presence coordinator. The registry and
// broadcaster are created and owned by the coordinator; the bus and
// authenticator are collaborators supplied by the caller.
func NewCoordinator(b bus.Bus, authenticator auth.Authenticator, opts ...Option) *Coordinator {
	c := &Coordinator{
		bus:           b,
		authenticator: authenticator,
		logger:        slog.Default(),
		channel:       DefaultChannel,
		origin:        id.NewWorkerID().String(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = session.NewRegistry()
	c.broadcaster = stream.NewBroadcaster(c.registry, c.logger)
	return c
}

// Registry exposes the session registry (read paths for admin surfaces).
func (c *Coordinator) Registry() *session.Registry { return c.registry }

// Broadcaster exposes the local fan-out layer.
func (c *Coordinator) Broadcaster() *stream.Broadcaster { return c.broadcaster }

// Origin returns this process's identifier on the bus.
func (c *Coordinator) Origin() string { return c.origin }

// Start subscribes to the shared channel and begins replaying remote
// events into the local broadcaster. Calling Start twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	sub, err := c.bus.Subscribe(ctx, c.channel, c.replay)
	if err != nil {
		return fmt.Errorf("presence: subscribe %s: %w", c.channel, err)
	}
	c.sub = sub
	c.started = true

	c.logger.Info("presence coordinator started",
		slog.String("channel", c.channel),
		slog.String("origin", c.origin),
	)
	return nil
}

// Stop closes the bus subscription. Connected clients stay registered;
// callers disconnect them individually.
func (c *Coordinator) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if err := c.sub.Close(); err != nil {
		return fmt.Errorf("presence: close subscription: %w", err)
	}
	return nil
}

// Connect authenticates a new connection and registers its session.
// A failed credential check refuses the connection before any session
// state exists.
func (c *Coordinator) Connect(ctx context.Context, token string) (*Client, error) {
	ident, err := c.authenticator.Authenticate(ctx, token)
	if err != nil {
		c.logger.Warn("connection refused", slog.String("error", err.Error()))
		return nil, err
	}

	sess := session.New(ident.UserID)
	c.registry.Register(sess)
	sub := c.broadcaster.Attach(sess.ID)

	c.logger.Info("user connected",
		slog.String("user_id", ident.UserID),
		slog.String("session_id", sess.ID.String()),
	)

	return &Client{
		coord:     c,
		sessionID: sess.ID,
		userID:    ident.UserID,
		sub:       sub,
	}, nil
}

// replay applies a remote envelope to the local broadcaster. Envelopes
// published by this process are skipped — local members already received
// the event on the primary path.
func (c *Coordinator) replay(env *bus.Envelope) {
	if env.Origin == c.origin {
		return
	}

	evt := &stream.Event{
		Type:      stream.EventType(env.Type),
		UserID:    env.UserID,
		RoomID:    env.WorkspaceID,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	}
	c.broadcaster.Broadcast(env.WorkspaceID, evt, id.Nil)
}

// publish mirrors a local event onto the shared channel. Transport
// failures degrade cross-process presence accuracy only, so they are
// logged and swallowed — the local broadcast has already happened.
func (c *Coordinator) publish(ctx context.Context, evt *stream.Event) {
	env := &bus.Envelope{
		Type:        string(evt.Type),
		UserID:      evt.UserID,
		WorkspaceID: evt.RoomID,
		Origin:      c.origin,
		Payload:     evt.Payload,
		Timestamp:   evt.Timestamp,
	}
	if err := c.bus.Publish(ctx, c.channel, env); err != nil {
		c.logger.Warn("cross-process publish failed",
			slog.String("event_type", string(evt.Type)),
			slog.String("workspace_id", evt.RoomID),
			slog.String("error", err.Error()),
		)
	}
}
