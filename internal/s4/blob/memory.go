package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. It backs tests and local runs where
// no object storage is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = Object{Data: buf, ContentType: contentType}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Len reports the number of stored objects, used by tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
