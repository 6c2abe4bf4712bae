package session

import (
	"sync"

	"github.com/huddlehq/huddle/id"
)

// Registry is the owned, lock-guarded index of live sessions and room
// membership. Rooms are derived state: a session appears in a room's
// member set exactly when its RoomID names that room, and both sides of
// that invariant are updated under one lock.
//
// All operations are idempotent and none of them block.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // session ID → session
	rooms    map[string]map[string]struct{} // room ID → session ID set
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// Register adds a session. Registering the same session again is a no-op.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.ID.String()
	if _, exists := r.sessions[key]; exists {
		return
	}
	cp := *s
	r.sessions[key] = &cp
	if cp.RoomID != "" {
		r.addToRoom(cp.RoomID, key)
	}
}

// SetRoom moves a session into a room, removing it from its previous room
// if it had one. Setting the room it is already in is a no-op. Unknown
// sessions are ignored.
func (r *Registry) SetRoom(sessionID id.SessionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionID.String()
	s, ok := r.sessions[key]
	if !ok || s.RoomID == roomID {
		return
	}
	if s.RoomID != "" {
		r.removeFromRoom(s.RoomID, key)
	}
	s.RoomID = roomID
	if roomID != "" {
		r.addToRoom(roomID, key)
	}
}

// Get returns a copy of the session, or false if it is not registered.
func (r *Registry) Get(sessionID id.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID.String()]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Unregister removes a session and returns its final state. Removing an
// unknown session returns false and is not an error, so duplicate
// disconnect notifications are harmless.
func (r *Registry) Unregister(sessionID id.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionID.String()
	s, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	if s.RoomID != "" {
		r.removeFromRoom(s.RoomID, key)
	}
	delete(r.sessions, key)
	cp := *s
	return &cp, true
}

// MembersOf returns the IDs of all sessions currently in the room.
func (r *Registry) MembersOf(roomID string) []id.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]id.SessionID, 0, len(members))
	for key := range members {
		out = append(out, r.sessions[key].ID)
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// addToRoom and removeFromRoom maintain the derived room index.
// Callers hold the write lock.

func (r *Registry) addToRoom(roomID, sessionKey string) {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[sessionKey] = struct{}{}
}

func (r *Registry) removeFromRoom(roomID, sessionKey string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, sessionKey)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
