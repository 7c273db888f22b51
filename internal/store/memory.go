package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and local development.
// A single mutex serializes all updates, which trivially satisfies the
// atomicity contract.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

// Get returns the record stored under key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

// Set unconditionally writes the record under key.
func (s *MemoryStore) Set(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(rec)
	return nil
}

// Update applies fn while holding the store mutex.
func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[key]
	next, err := fn(clone(current), exists)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if !exists {
			return nil, ErrNotFound
		}
		return clone(current), nil
	}
	s.data[key] = clone(next)
	return next, nil
}

// Len returns the number of stored records. Exposed for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func clone(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	copy(out, rec)
	return out
}
