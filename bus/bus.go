// Package bus mirrors presence events across backend processes. Each
// process publishes its local joins, leaves, and updates on a shared
// channel; peer processes replay them into their own broadcasters so room
// state converges. Delivery is at-least-once and eventually consistent —
// same-process fan-out never depends on the bus.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Envelope is the JSON message carried on the shared channel. It mirrors
// the realtime events so a peer process can replay them locally.
type Envelope struct {
	// Type is the workspace event type ("user:joined", "cursor:update", ...).
	Type string `json:"type"`

	// UserID is the user the event originated from.
	UserID string `json:"user_id"`

	// WorkspaceID is the room the event belongs to.
	WorkspaceID string `json:"workspace_id"`

	// Origin identifies the publishing process so it can skip its own
	// envelopes when they echo back.
	Origin string `json:"origin"`

	// Payload is the event-specific body, opaque to the bus.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"ts"`
}

// Handler is invoked once per received envelope, in the order the
// transport delivers them.
type Handler func(env *Envelope)

// Bus is the cross-process publish/subscribe contract.
type Bus interface {
	// Publish sends an envelope on the named channel. A transport failure
	// returns an error wrapping ErrTransport; local delivery that already
	// happened is unaffected.
	Publish(ctx context.Context, channel string, env *Envelope) error

	// Subscribe registers a handler for the named channel. The returned
	// subscription keeps the handler active until closed.
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)

	// Close releases the bus's transport resources.
	Close() error
}

// Subscription is a handle on an active channel subscription.
type Subscription interface {
	// Close stops delivery to the handler.
	Close() error
}

// ErrTransport indicates the underlying pub/sub transport failed. Callers
// log it and carry on; presence accuracy degrades until the transport
// recovers, but no local state is lost.
var ErrTransport = errors.New("bus: transport failure")
