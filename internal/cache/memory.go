package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/seatfee/internal/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in process. Expired entries are dropped lazily
// on read.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]memoryEntry
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryStore{
		clock:   clk,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.clock.Now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}
