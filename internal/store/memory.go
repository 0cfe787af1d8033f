package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

// MemoryStore keeps vectors in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]model.EmbeddedEntry
	dims    int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.EmbeddedEntry)}
}

func (s *MemoryStore) Upsert(_ context.Context, entries []model.EmbeddedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := CheckDimensions(s.dims, entries)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		e.Embedding = append([]float32(nil), e.Embedding...)
		s.entries[e.ID] = e
	}
	if len(entries) > 0 {
		s.dims = dims
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, topK int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims > 0 && len(query) != s.dims {
		return nil, fmt.Errorf("search: %w: query has %d, store has %d",
			embedding.ErrDimensionMismatch, len(query), s.dims)
	}
	candidates := make([]model.EmbeddedEntry, 0, len(s.order))
	for _, id := range s.order {
		candidates = append(candidates, s.entries[id])
	}
	return Rank(query, candidates, topK)
}

func (s *MemoryStore) Remove(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}

	order := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.entries[id]; ok {
			order = append(order, id)
		}
	}
	s.order = order
	if len(s.order) == 0 {
		s.dims = 0
	}
	return n, nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *MemoryStore) Close() error { return nil }
