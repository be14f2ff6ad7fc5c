// Package cache provides the per-resource local read caches. A cache is
// populated wholesale on each successful read and patched (remove/insert)
// only by the mutation engine as a same-session optimistic prediction of a
// future read.
package cache

import "sync"

// Store caches one resource collection. It is safe for concurrent use, though
// all mutation is expected to come from the read path (Replace) or the
// mutation engine (Remove/Insert).
type Store[T any] struct {
	key func(T) string

	mu     sync.RWMutex
	items  []T
	loaded bool
	stale  bool
}

// New creates a Store keyed by the given id function.
func New[T any](key func(T) string) *Store[T] {
	return &Store[T]{key: key}
}

// Replace swaps in a freshly fetched collection and clears staleness.
func (s *Store[T]) Replace(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]T, len(items))
	copy(s.items, items)
	s.loaded = true
	s.stale = false
}

// Items returns a copy of the cached collection in cache order.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the cached record with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if s.key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of cached records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Remove deletes the record with the given id and returns the removed record
// together with its position, so a failed mutation can restore the cache to a
// byte-for-byte identical state via Insert.
func (s *Store[T]) Remove(id string) (removed T, index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if s.key(item) == id {
			removed = item
			s.items = append(s.items[:i], s.items[i+1:]...)
			return removed, i, true
		}
	}
	return removed, 0, false
}

// Insert places a record at the given position, clamped to the current
// bounds. Used both for optimistic inserts and for rollback.
func (s *Store[T]) Insert(item T, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(s.items) {
		index = len(s.items)
	}
	s.items = append(s.items[:index], append([]T{item}, s.items[index:]...)...)
}

// Update replaces the record with the same id in place and returns the prior
// value for rollback. It is a no-op when the id is absent.
func (s *Store[T]) Update(item T) (previous T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.key(item)
	for i, existing := range s.items {
		if s.key(existing) == id {
			previous = existing
			s.items[i] = item
			return previous, true
		}
	}
	return previous, false
}

// MarkStale flags the cache so the next read re-fetches instead of serving
// local data.
func (s *Store[T]) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

// Stale reports whether the cache needs a re-fetch. An unloaded cache is
// always stale.
func (s *Store[T]) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale || !s.loaded
}
