package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps options and the event journal in process. It backs tests
// and single-shot tooling; state is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	options map[string]string
	events  map[string]ProcessedEvent
	now     func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		options: make(map[string]string),
		events:  make(map[string]ProcessedEvent),
		now:     time.Now,
	}
}

func (m *MemoryStore) GetOption(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.options[key]
	return value, found, nil
}

func (m *MemoryStore) SetOption(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[key] = value
	return nil
}

func (m *MemoryStore) DeleteOption(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.options, key)
	return nil
}

func (m *MemoryStore) RecordEvent(ctx context.Context, id, eventType string) (EventState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if ev, seen := m.events[id]; seen {
		if ev.Status == EventDone || now.Sub(ev.ReceivedAt) < PendingLease {
			return ev.Status, nil
		}
	}
	m.events[id] = ProcessedEvent{ID: id, EventType: eventType, Status: EventPending, ReceivedAt: now}
	return EventNew, nil
}

func (m *MemoryStore) CompleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[id]; ok {
		ev.Status = EventDone
		m.events[id] = ev
	}
	return nil
}

func (m *MemoryStore) ForgetEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *MemoryStore) Health() error { return nil }

func (m *MemoryStore) Close() error { return nil }
