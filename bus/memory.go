package bus

import (
	"context"
	"sync"
)

// Memory is an in-process Bus. Handlers run synchronously on the
// publisher's goroutine, in subscription order. Intended for unit tests
// and single-process deployments.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler // channel → subscription id → handler
	nextID int
	closed bool
}

var _ Bus = (*Memory)(nil)

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]Handler)}
}

// Publish delivers the envelope to every handler subscribed to the channel.
func (m *Memory) Publish(_ context.Context, channel string, env *Envelope) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrTransport
	}
	handlers := make([]Handler, 0, len(m.subs[channel]))
	for _, h := range m.subs[channel] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
	return nil
}

// Subscribe registers a handler on the channel.
func (m *Memory) Subscribe(_ context.Context, channel string, h Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransport
	}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[int]Handler)
	}
	subID := m.nextID
	m.nextID++
	m.subs[channel][subID] = h

	return &memorySubscription{bus: m, channel: channel, id: subID}, nil
}

// Close stops all subscriptions and rejects further publishes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string]map[int]Handler)
	return nil
}

type memorySubscription struct {
	bus     *Memory
	channel string
	id      int
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if handlers, ok := s.bus.subs[s.channel]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.bus.subs, s.channel)
		}
	}
	return nil
}
