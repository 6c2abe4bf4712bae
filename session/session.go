// Package session tracks which live connection belongs to which user and
// which room. It is pure in-memory state: one Session per connection,
// created after authentication and destroyed on disconnect.
package session

import (
	"time"

	"github.com/huddlehq/huddle/id"
)

// Session is one authenticated live connection. A session belongs to at
// most one room at a time; RoomID is empty until the client joins a
// workspace.
type Session struct {
	ID          id.SessionID
	UserID      string
	RoomID      string
	ConnectedAt time.Time
}

// New creates a session for an authenticated user. The room is assigned
// later via Registry.SetRoom.
func New(userID string) *Session {
	return &Session{
		ID:          id.NewSessionID(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
	}
}
