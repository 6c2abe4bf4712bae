package session_test

import (
	"sync"
	"testing"

	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/session"
)

func memberSet(r *session.Registry, room string) map[string]bool {
	out := make(map[string]bool)
	for _, sid := range r.MembersOf(room) {
		out[sid.String()] = true
	}
	return out
}

func TestRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry()
	s := session.New("user-1")
	r.Register(s)

	got, ok := r.Get(s.ID)
	if !ok {
		t.Fatal("session not found after Register")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "user-1")
	}
	if got.RoomID != "" {
		t.Errorf("RoomID = %q, want empty before join", got.RoomID)
	}

	// Re-register is a no-op.
	r.Register(s)
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestSetRoomMembership(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry()
	a := session.New("user-a")
	b := session.New("user-b")
	r.Register(a)
	r.Register(b)

	r.SetRoom(a.ID, "ws-1")
	r.SetRoom(b.ID, "ws-1")

	members := memberSet(r, "ws-1")
	if len(members) != 2 || !members[a.ID.String()] || !members[b.ID.String()] {
		t.Errorf("MembersOf(ws-1) = %v, want both sessions", members)
	}

	// Repeated identical SetRoom is a no-op.
	r.SetRoom(a.ID, "ws-1")
	if len(r.MembersOf("ws-1")) != 2 {
		t.Errorf("duplicate SetRoom changed membership")
	}

	// Moving rooms removes from the old room.
	r.SetRoom(a.ID, "ws-2")
	if memberSet(r, "ws-1")[a.ID.String()] {
		t.Error("session still in old room after move")
	}
	if !memberSet(r, "ws-2")[a.ID.String()] {
		t.Error("session missing from new room after move")
	}

	got, _ := r.Get(a.ID)
	if got.RoomID != "ws-2" {
		t.Errorf("RoomID = %q, want ws-2", got.RoomID)
	}
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry()
	s := session.New("user-1")
	r.Register(s)
	r.SetRoom(s.ID, "ws-1")

	removed, ok := r.Unregister(s.ID)
	if !ok {
		t.Fatal("Unregister returned false for known session")
	}
	if removed.RoomID != "ws-1" {
		t.Errorf("removed.RoomID = %q, want ws-1", removed.RoomID)
	}
	if len(r.MembersOf("ws-1")) != 0 {
		t.Error("room still has members after Unregister")
	}

	// Duplicate disconnect notifications tolerate the unknown session.
	if _, ok := r.Unregister(s.ID); ok {
		t.Error("second Unregister should report absent")
	}
	if _, ok := r.Unregister(id.NewSessionID()); ok {
		t.Error("Unregister of never-registered session should report absent")
	}
}

// Membership after an arbitrary join/leave sequence equals the set of
// sessions whose last operation was a join.
func TestMembershipReplay(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry()
	sessions := make([]*session.Session, 6)
	for i := range sessions {
		sessions[i] = session.New("user")
		r.Register(sessions[i])
	}

	type op struct {
		idx  int
		join bool
	}
	seq := []op{
		{0, true}, {1, true}, {2, true},
		{1, false},
		{3, true}, {1, true},
		{0, false}, {0, false}, // duplicate leave
		{4, true}, {5, true}, {5, false},
	}

	expected := make(map[string]bool)
	for _, o := range seq {
		s := sessions[o.idx]
		if o.join {
			r.SetRoom(s.ID, "ws-replay")
			expected[s.ID.String()] = true
		} else {
			r.SetRoom(s.ID, "")
			delete(expected, s.ID.String())
		}
	}

	got := memberSet(r, "ws-replay")
	if len(got) != len(expected) {
		t.Fatalf("membership size = %d, want %d", len(got), len(expected))
	}
	for key := range expected {
		if !got[key] {
			t.Errorf("missing member %s", key)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry()
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := session.New("user")
			r.Register(s)
			r.SetRoom(s.ID, "ws-1")
			r.MembersOf("ws-1")
			r.Unregister(s.ID)
		}()
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count = %d after all sessions unregistered, want 0", r.Count())
	}
	if len(r.MembersOf("ws-1")) != 0 {
		t.Error("room not empty after all sessions unregistered")
	}
}
