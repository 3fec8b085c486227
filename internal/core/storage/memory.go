package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is an in-process SnapshotStore. Snapshots do not survive the
// process; it backs tests and the "memory" storage mode.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

var _ SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, ownerID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[ownerID] = slices.Clone(data)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, ownerID string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	b, ok := m.data[ownerID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(b), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, ownerID)
	return nil
}

func (m *MemoryStore) Owners(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(m.data))
	for id := range m.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
