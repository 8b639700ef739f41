package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps records in a map. Values are copied on the way in and
// out so callers cannot alias stored bytes.
type MemoryStore struct {
	records map[string][]byte
	mutex   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.records[key]
	if !ok {
		return nil, notFound(key)
	}
	return clone(value), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.records[key] = clone(value)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	value, ok := s.records[key]
	if !ok {
		return nil, notFound(key)
	}
	delete(s.records, key)
	return value, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
