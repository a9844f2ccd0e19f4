package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a map with lazy expiry.
// Expired entries are dropped on read and swept opportunistically on
// write, so memory use stays proportional to the live working set.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	now     func() time.Time

	// sweep counter; a full sweep runs every sweepEvery writes
	writes int
}

const sweepEvery = 256

// NewMemory creates an empty in-memory cache.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
	}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}

	return entry.value, true
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry[V]{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}

	m.writes++
	if m.writes%sweepEvery == 0 {
		m.sweepLocked()
	}
}

func (m *Memory[V]) Invalidate(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Must be called with lock held.
func (m *Memory[V]) sweepLocked() {
	now := m.now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
