// Package stream fans workspace events out to the sessions of a room.
// It is the same-process delivery path: one event in, one copy per room
// member out, with per-recipient failures isolated so a stale or slow
// connection never blocks the rest of the room.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of workspace event.
type EventType string

const (
	// EventUserJoined announces a member joining the workspace room.
	EventUserJoined EventType = "user:joined"
	// EventUserLeft announces a member leaving (disconnect or room switch).
	EventUserLeft EventType = "user:left"
	// EventCursorUpdate carries a member's live cursor position.
	EventCursorUpdate EventType = "cursor:update"
	// EventFileChange carries an edit notification for a shared file.
	EventFileChange EventType = "file:change"
	// EventActivityUpdate carries an ephemeral activity indicator. It is
	// delivered to the local room only and never mirrored cross-process.
	EventActivityUpdate EventType = "activity:update"
)

// Event is the envelope delivered to room members. Payload stays opaque
// to the core; the coordinator tags it with the sending user before
// broadcasting.
type Event struct {
	// Type identifies the workspace event.
	Type EventType `json:"type" msgpack:"type"`

	// UserID is the user the event originated from.
	UserID string `json:"user_id" msgpack:"user_id"`

	// RoomID is the workspace room the event belongs to.
	RoomID string `json:"room_id" msgpack:"room_id"`

	// Payload is the event-specific body, opaque to the core.
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(typ EventType, userID, roomID string, payload json.RawMessage) *Event {
	return &Event{
		Type:      typ,
		UserID:    userID,
		RoomID:    roomID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
