package chromem

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
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

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e := entry("east", model.KindLesson, 1, 0, 0)
	e.Role = "builder"
	e.Tags = []string{"completed"}
	err := s.Upsert(ctx, []model.EmbeddedEntry{
		e,
		entry("north", model.KindDecision, 0, 1, 0),
		entry("northeast", model.KindLesson, 1, 1, 0),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// topK above the collection size must not error
	results, err := s.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "east" || results[1].ID != "northeast" || results[2].ID != "north" {
		t.Errorf("unexpected order: %s, %s, %s", results[0].ID, results[1].ID, results[2].ID)
	}
	if math.Abs(results[0].Score-1) > 1e-5 {
		t.Errorf("self similarity = %f", results[0].Score)
	}
	if results[0].Role != "builder" || len(results[0].Tags) != 1 || results[0].Kind != model.KindLesson {
		t.Errorf("metadata lost: %+v", results[0].MemoryEntry)
	}

	top, _ := s.Search(ctx, []float32{0, 1, 0}, 1)
	if len(top) != 1 || top[0].ID != "north" {
		t.Errorf("top 1 = %+v", top)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, []model.EmbeddedEntry{
		entry("a", model.KindLesson, 1, 0),
		entry("b", model.KindLesson, 0, 1),
	})
	updated := entry("a", model.KindLesson, 0, 1)
	updated.Content = "rewritten"
	s.Upsert(ctx, []model.EmbeddedEntry{updated})

	ids, _ := s.ListIDs(ctx)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
	results, _ := s.Search(ctx, []float32{0, 1}, 0)
	for _, r := range results {
		if r.ID == "a" && r.Content != "rewritten" {
			t.Errorf("content not replaced: %q", r.Content)
		}
	}

	n, err := s.Remove(ctx, []string{"a", "a", "missing"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if s.col.Count() != 1 {
		t.Errorf("collection count = %d, want 1", s.col.Count())
	}
}

func TestZeroVectors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Upsert(ctx, []model.EmbeddedEntry{
		entry("pos", model.KindLesson, 1, 0),
		entry("zero", model.KindQuestion, 0, 0),
		entry("neg", model.KindLesson, -1, 0),
	})

	count, _ := s.Count(ctx)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if s.col.Count() != 2 {
		t.Errorf("zero vector should stay out of the collection, collection has %d", s.col.Count())
	}

	results, err := s.Search(ctx, []float32{1, 0}, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []string{"pos", "zero", "neg"}
	for i, id := range want {
		if results[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, results[i].ID, id)
		}
	}

	zq, err := s.Search(ctx, []float32{0, 0}, 0)
	if err != nil {
		t.Fatalf("zero query: %v", err)
	}
	for i, id := range []string{"pos", "zero", "neg"} {
		if zq[i].ID != id || zq[i].Score != 0 {
			t.Errorf("zero query position %d: %s %f", i, zq[i].ID, zq[i].Score)
		}
	}

	// A zero entry gaining a vector moves into the collection.
	s.Upsert(ctx, []model.EmbeddedEntry{entry("zero", model.KindQuestion, 0, 1)})
	if s.col.Count() != 3 {
		t.Errorf("collection count = %d, want 3", s.col.Count())
	}
	s.Upsert(ctx, []model.EmbeddedEntry{entry("pos", model.KindLesson, 0, 0)})
	if s.col.Count() != 2 {
		t.Errorf("collection count = %d, want 2", s.col.Count())
	}
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Upsert(ctx, []model.EmbeddedEntry{entry("a", model.KindLesson, 1, 0, 0)})

	if err := s.Upsert(ctx, []model.EmbeddedEntry{entry("b", model.KindLesson, 1, 0)}); !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Errorf("upsert: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Errorf("search: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmptySearch(t *testing.T) {
	s := newTestStore(t)
	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestOpenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Upsert(ctx, []model.EmbeddedEntry{
		entry("a", model.KindLesson, 1, 0),
		entry("z", model.KindLesson, 0, 0),
		entry("b", model.KindDecision, 0, 1),
	})
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	ids, _ := s.ListIDs(ctx)
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "z" || ids[2] != "b" {
		t.Errorf("ids = %v", ids)
	}
	results, err := s.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("results = %+v", results)
	}
	if err := s.Upsert(ctx, []model.EmbeddedEntry{entry("c", model.KindLesson, 1, 0, 0)}); !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Errorf("dimensions not restored: %v", err)
	}
}
