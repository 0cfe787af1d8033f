package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id string, kind model.Kind, vec ...float32) model.EmbeddedEntry {
	return model.EmbeddedEntry{
		MemoryEntry: model.MemoryEntry{ID: id, Kind: kind, Content: "content of " + id},
		Embedding:   embedding.Normalize(vec),
	}
}

// forEachStore runs fn against every Store implementation in this package.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
}

func TestSearchRanksBySimilarity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Upsert(ctx, []model.EmbeddedEntry{
			entry("east", model.KindLesson, 1, 0, 0),
			entry("north", model.KindDecision, 0, 1, 0),
			entry("northeast", model.KindLesson, 1, 1, 0),
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}

		results, err := s.Search(ctx, []float32{1, 0, 0}, 2)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].ID != "east" || results[1].ID != "northeast" {
			t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
		}
		if math.Abs(results[0].Score-1) > 1e-6 {
			t.Errorf("self similarity = %f", results[0].Score)
		}
		if math.Abs(results[1].Score-math.Sqrt2/2) > 1e-6 {
			t.Errorf("diagonal similarity = %f", results[1].Score)
		}
		if results[0].Content != "content of east" || results[0].Kind != model.KindLesson {
			t.Errorf("entry fields lost: %+v", results[0].MemoryEntry)
		}

		all, _ := s.Search(ctx, []float32{0, 0, 1}, 0)
		if len(all) != 3 {
			t.Errorf("topK 0 should return all, got %d", len(all))
		}
	})
}

func TestUpsertReplacesInPlace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Upsert(ctx, []model.EmbeddedEntry{
			entry("a", model.KindLesson, 1, 0),
			entry("b", model.KindLesson, 0, 1),
		})

		updated := entry("a", model.KindDecision, 0, 1)
		updated.Content = "rewritten"
		updated.Tags = []string{"ADR-002"}
		updated.Role = "builder"
		if err := s.Upsert(ctx, []model.EmbeddedEntry{updated}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		n, _ := s.Count(ctx)
		if n != 2 {
			t.Errorf("count = %d, want 2", n)
		}
		ids, _ := s.ListIDs(ctx)
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("ids = %v, want [a b]", ids)
		}

		results, _ := s.Search(ctx, []float32{0, 1}, 1)
		if results[0].ID != "a" {
			t.Fatalf("expected updated vector to win the tie, got %s", results[0].ID)
		}
		got := results[0]
		if got.Content != "rewritten" || got.Kind != model.KindDecision || got.Role != "builder" {
			t.Errorf("entry not replaced: %+v", got.MemoryEntry)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "ADR-002" {
			t.Errorf("tags = %v", got.Tags)
		}
	})
}

func TestDimensionMismatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Upsert(ctx, []model.EmbeddedEntry{entry("a", model.KindLesson, 1, 0, 0)}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		err := s.Upsert(ctx, []model.EmbeddedEntry{entry("b", model.KindLesson, 1, 0)})
		if !errors.Is(err, embedding.ErrDimensionMismatch) {
			t.Errorf("upsert: expected ErrDimensionMismatch, got %v", err)
		}
		if _, err := s.Search(ctx, []float32{1, 0}, 5); !errors.Is(err, embedding.ErrDimensionMismatch) {
			t.Errorf("search: expected ErrDimensionMismatch, got %v", err)
		}

		mixed := []model.EmbeddedEntry{entry("c", model.KindLesson, 0, 1, 0), entry("d", model.KindLesson, 1)}
		if err := s.Upsert(ctx, mixed); !errors.Is(err, embedding.ErrDimensionMismatch) {
			t.Errorf("mixed batch: expected ErrDimensionMismatch, got %v", err)
		}
		n, _ := s.Count(ctx)
		if n != 1 {
			t.Errorf("failed batch should write nothing, count = %d", n)
		}
	})
}

func TestRemove(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Upsert(ctx, []model.EmbeddedEntry{
			entry("a", model.KindLesson, 1, 0),
			entry("b", model.KindLesson, 0, 1),
			entry("c", model.KindLesson, 1, 1),
		})

		n, err := s.Remove(ctx, []string{"a", "c", "missing"})
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if n != 2 {
			t.Errorf("removed %d, want 2", n)
		}
		ids, _ := s.ListIDs(ctx)
		if len(ids) != 1 || ids[0] != "b" {
			t.Errorf("ids = %v, want [b]", ids)
		}

		s.Remove(ctx, []string{"b"})
		if err := s.Upsert(ctx, []model.EmbeddedEntry{entry("x", model.KindLesson, 1, 0, 0, 0)}); err != nil {
			t.Errorf("emptied store should accept a new dimensionality: %v", err)
		}
	})
}

func TestSearchZeroVector(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Upsert(ctx, []model.EmbeddedEntry{
			entry("a", model.KindLesson, 1, 0),
			entry("zero", model.KindLesson, 0, 0),
		})

		results, err := s.Search(ctx, []float32{0, 0}, 5)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		for _, r := range results {
			if r.Score != 0 || math.IsNaN(r.Score) {
				t.Errorf("zero query should score 0, got %f for %s", r.Score, r.ID)
			}
		}
	})
}

func TestEmptyStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		results, err := s.Search(ctx, []float32{1, 2, 3}, 5)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		ids, _ := s.ListIDs(ctx)
		if ids == nil || len(ids) != 0 {
			t.Errorf("expected empty non-nil ids, got %#v", ids)
		}
		if err := s.Upsert(ctx, nil); err != nil {
			t.Errorf("empty upsert: %v", err)
		}
	})
}
