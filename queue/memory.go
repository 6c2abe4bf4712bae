package queue

import (
	"context"
	"sync"
	"time"

	"github.com/huddlehq/huddle/id"
)

// memItem tracks one queued job: how often it has been delivered and
// when it next becomes eligible.
type memItem struct {
	jobID   id.JobID
	attempt int
	readyAt time.Time
}

// Memory is an in-process Queue. Deliveries are FIFO among eligible
// items; Nacked items re-enter the tail after their delay elapses.
// It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	pending  []*memItem
	inflight map[string]*memItem
	wake     chan struct{}
	done     chan struct{}
	closed   bool
}

var _ Queue = (*Memory)(nil)

// NewMemory creates an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{
		inflight: make(map[string]*memItem),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (m *Memory) Enqueue(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.pending = append(m.pending, &memItem{jobID: jobID, readyAt: time.Now()})
	m.signal()
	return nil
}

func (m *Memory) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}

		now := time.Now()
		if it := m.takeReadyLocked(now); it != nil {
			it.attempt++
			m.inflight[it.jobID.String()] = it
			d := &Delivery{JobID: it.jobID, Attempt: it.attempt}
			m.mu.Unlock()
			return d, nil
		}

		// Nothing eligible. Sleep until the next item matures, a new item
		// arrives, or the caller gives up.
		var timer *time.Timer
		var timerC <-chan time.Time
		if next, ok := m.nextReadyLocked(); ok {
			timer = time.NewTimer(next.Sub(now))
			timerC = timer.C
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil, ctx.Err()
		case <-m.done:
			if timer != nil {
				timer.Stop()
			}
			return nil, ErrClosed
		case <-m.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (m *Memory) Ack(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	key := d.JobID.String()
	if _, ok := m.inflight[key]; !ok {
		return ErrNotInFlight
	}
	delete(m.inflight, key)
	return nil
}

func (m *Memory) Nack(_ context.Context, d *Delivery, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	key := d.JobID.String()
	it, ok := m.inflight[key]
	if !ok {
		return ErrNotInFlight
	}
	delete(m.inflight, key)
	it.readyAt = time.Now().Add(delay)
	m.pending = append(m.pending, it)
	m.signal()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

// Len returns the number of pending (not in-flight) items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// takeReadyLocked removes and returns the first eligible item, or nil.
func (m *Memory) takeReadyLocked(now time.Time) *memItem {
	for i, it := range m.pending {
		if !it.readyAt.After(now) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return it
		}
	}
	return nil
}

// nextReadyLocked returns the earliest maturity time among pending items.
func (m *Memory) nextReadyLocked() (time.Time, bool) {
	var next time.Time
	for _, it := range m.pending {
		if next.IsZero() || it.readyAt.Before(next) {
			next = it.readyAt
		}
	}
	return next, !next.IsZero()
}

func (m *Memory) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
