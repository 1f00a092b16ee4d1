package featcache

import (
	"context"
	"sync"

	"github.com/kailas-cloud/memfed/internal/db"
)

// DefaultMemoryCapacity bounds the in-process cache.
const DefaultMemoryCapacity = 4096

// MemoryStore is a bounded in-process key-value store used when no database
// is configured. Eviction is insertion-order (oldest first).
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	values   map[string][]byte
	order    []string
}

// NewMemoryStore creates a bounded in-process store
// (DefaultMemoryCapacity if capacity <= 0).
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		values:   make(map[string][]byte, capacity),
	}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

// Set stores a value, evicting the oldest entry when full.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.values[key]; !exists {
		if len(m.order) >= m.capacity {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.values, oldest)
		}
		m.order = append(m.order, key)
	}
	m.values[key] = value
	return nil
}
