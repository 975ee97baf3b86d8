// Package inmemory provides a map-backed merge cache store for tests and
// one-shot CLI runs.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/bochendong/dragon-continue/pkg/mergecache"
)

// Store implements mergecache.Store in memory.
type Store struct {
	mu      sync.RWMutex
	entries map[mergecache.Key]mergecache.Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[mergecache.Key]mergecache.Entry)}
}

func (s *Store) Load(_ context.Context, key mergecache.Key) (*mergecache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, mergecache.ErrNotFound
	}
	return clone(e), nil
}

func (s *Store) Save(_ context.Context, entry *mergecache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key] = *clone(*entry)
	return nil
}

func (s *Store) Delete(_ context.Context, key mergecache.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *Store) List(_ context.Context) ([]*mergecache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*mergecache.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, clone(e))
	}
	slices.SortFunc(out, func(a, b *mergecache.Entry) int {
		if a.Observation != b.Observation {
			return a.Observation - b.Observation
		}
		return a.MergeFactor - b.MergeFactor
	})
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

func clone(e mergecache.Entry) *mergecache.Entry {
	e.Titles = slices.Clone(e.Titles)
	return &e
}
