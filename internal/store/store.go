// Package store provides the vector store interface used by the semantic
// index, with in-memory and SQLite implementations.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

// Result is a stored entry with its similarity to a query.
type Result struct {
	model.MemoryEntry
	Score float64 `json:"score"`
}

// Store defines the vector storage interface.
type Store interface {
	// Upsert adds entries, replacing any with the same ID in place.
	Upsert(ctx context.Context, entries []model.EmbeddedEntry) error

	// Search ranks stored entries by cosine similarity to query, best first.
	// topK <= 0 returns every entry.
	Search(ctx context.Context, query []float32, topK int) ([]Result, error)

	// Remove deletes entries by ID and returns how many existed.
	Remove(ctx context.Context, ids []string) (int, error)

	// ListIDs returns stored IDs in insertion order.
	ListIDs(ctx context.Context) ([]string, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close closes the store.
	Close() error
}

// CheckDimensions verifies every entry has the same vector length, and that
// it matches dims when dims > 0. It returns the batch's length.
func CheckDimensions(dims int, entries []model.EmbeddedEntry) (int, error) {
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return 0, fmt.Errorf("entry %s has no embedding", e.ID)
		}
		if dims == 0 {
			dims = len(e.Embedding)
		}
		if len(e.Embedding) != dims {
			return 0, fmt.Errorf("entry %s: %w: got %d, store has %d",
				e.ID, embedding.ErrDimensionMismatch, len(e.Embedding), dims)
		}
	}
	return dims, nil
}

// Rank scores candidates against query and returns the best topK. Ties keep
// candidate order.
func Rank(query []float32, candidates []model.EmbeddedEntry, topK int) ([]Result, error) {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		sim, err := embedding.CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score entry %s: %w", c.ID, err)
		}
		results = append(results, Result{MemoryEntry: c.MemoryEntry, Score: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
