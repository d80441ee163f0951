package quotecache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It is also the fallback behind the
// Postgres and Redis backends when they fail at startup.
type MemoryStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quotes: make(map[string]Quote)}
}

// UpsertBatch writes or replaces a batch of quotes.
func (s *MemoryStore) UpsertBatch(ctx context.Context, quotes []Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quotes {
		s.quotes[q.Alias] = q
	}
	return nil
}

// Get returns the cached quote for alias, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, alias string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[alias]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

// Len returns the number of cached quotes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
