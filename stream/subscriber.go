package stream

import (
	"sync/atomic"

	"github.com/huddlehq/huddle/id"
)

// Subscriber is the outbound side of one session's connection. Events are
// handed to it on a buffered channel; the transport layer drains C and
// writes frames to the wire.
type Subscriber struct {
	sessionID id.SessionID
	ch        chan *Event

	// dropped counts events discarded because the buffer was full.
	dropped atomic.Int64

	// closed prevents double-close of the channel.
	closed atomic.Bool
}

// NewSubscriber creates a subscriber with the given buffer size.
func NewSubscriber(sessionID id.SessionID, bufferSize int) *Subscriber {
	return &Subscriber{
		sessionID: sessionID,
		ch:        make(chan *Event, bufferSize),
	}
}

// SessionID returns the session this subscriber delivers to.
func (s *Subscriber) SessionID() id.SessionID { return s.sessionID }

// C returns the read-only event channel.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// Dropped returns how many events were discarded for this subscriber.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// send attempts to deliver an event without blocking. A full buffer or a
// closed subscriber drops the event and returns false; delivery to other
// subscribers is unaffected.
func (s *Subscriber) send(evt *Event) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Close closes the subscriber channel. Safe to call multiple times.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
