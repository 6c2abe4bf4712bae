package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/stream"
)

// Client is the coordinator-side handle for one authenticated connection.
// It walks the session through its states: authenticated on Connect,
// joined after Join, disconnected after Disconnect. Disconnected is
// terminal — a reconnecting client gets a fresh session.
type Client struct {
	coord     *Coordinator
	sessionID id.SessionID
	userID    string
	sub       *stream.Subscriber

	mu           sync.Mutex
	roomID       string
	disconnected bool
}

// SessionID returns the session this client drives.
func (cl *Client) SessionID() id.SessionID { return cl.sessionID }

// UserID returns the authenticated user.
func (cl *Client) UserID() string { return cl.userID }

// Events returns the outbound event channel the transport layer drains.
// It is closed on disconnect.
func (cl *Client) Events() <-chan *stream.Event { return cl.sub.C() }

// Join moves the session into a workspace room and announces it to the
// members already there. Re-joining the current room is a no-op and emits
// no duplicate announcement. Joining a different room leaves the old one
// first, announcing the departure.
func (cl *Client) Join(ctx context.Context, workspaceID string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.disconnected {
		return ErrDisconnected
	}
	if workspaceID == "" {
		return fmt.Errorf("presence: join: empty workspace id")
	}
	if cl.roomID == workspaceID {
		return nil
	}

	if cl.roomID != "" {
		cl.announceLeaveLocked(ctx)
	}

	cl.roomID = workspaceID
	cl.coord.registry.SetRoom(cl.sessionID, workspaceID)

	evt := stream.NewEvent(stream.EventUserJoined, cl.userID, workspaceID, nil)
	cl.coord.broadcaster.Broadcast(workspaceID, evt, cl.sessionID)
	cl.coord.publish(ctx, evt)

	cl.coord.logger.Info("user joined workspace",
		slog.String("user_id", cl.userID),
		slog.String("workspace_id", workspaceID),
	)
	return nil
}

// HandleEvent dispatches one incoming client event by type. Cursor and
// file events are rebroadcast to the rest of the room and mirrored
// cross-process; activity updates are rebroadcast locally only — they are
// an ephemeral, single-process presence signal, intentionally cheaper
// than the durable-ish cursor and file channels.
func (cl *Client) HandleEvent(ctx context.Context, typ stream.EventType, payload json.RawMessage) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.disconnected {
		return ErrDisconnected
	}
	if cl.roomID == "" {
		return ErrNotJoined
	}

	evt := stream.NewEvent(typ, cl.userID, cl.roomID, payload)

	switch typ {
	case stream.EventCursorUpdate, stream.EventFileChange:
		cl.coord.broadcaster.Broadcast(cl.roomID, evt, cl.sessionID)
		cl.coord.publish(ctx, evt)
	case stream.EventActivityUpdate:
		cl.coord.broadcaster.Broadcast(cl.roomID, evt, cl.sessionID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	return nil
}

// Disconnect removes the session, announces the departure if it was in a
// room, and closes the outbound channel. Safe to call multiple times;
// duplicate disconnect signals produce at most one user:left broadcast.
func (cl *Client) Disconnect(ctx context.Context) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.disconnected {
		return
	}
	cl.disconnected = true

	if cl.roomID != "" {
		cl.announceLeaveLocked(ctx)
	}

	cl.coord.registry.Unregister(cl.sessionID)
	cl.coord.broadcaster.Detach(cl.sessionID)

	cl.coord.logger.Info("user disconnected",
		slog.String("user_id", cl.userID),
		slog.String("session_id", cl.sessionID.String()),
	)
}

// announceLeaveLocked broadcasts user:left for the current room and
// clears it. Caller holds cl.mu.
func (cl *Client) announceLeaveLocked(ctx context.Context) {
	room := cl.roomID
	cl.roomID = ""
	cl.coord.registry.SetRoom(cl.sessionID, "")

	evt := stream.NewEvent(stream.EventUserLeft, cl.userID, room, nil)
	cl.coord.broadcaster.Broadcast(room, evt, cl.sessionID)
	cl.coord.publish(ctx, evt)
}
