package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/cogmem/internal/model"
)

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "semantic.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e := entry("decision-adr-001", model.KindDecision, 0.5, 0.5, 0)
	e.Date = "2025-01-10"
	e.Tags = []string{"ADR-001"}
	if err := s.Upsert(ctx, []model.EmbeddedEntry{e, entry("lesson-1", model.KindLesson, 0, 0, 1)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	all, err := s.ExportAll(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	got := all[0]
	if got.ID != "decision-adr-001" || got.Date != "2025-01-10" || len(got.Tags) != 1 {
		t.Errorf("unexpected entry: %+v", got.MemoryEntry)
	}
	for i := range e.Embedding {
		if got.Embedding[i] != e.Embedding[i] {
			t.Fatalf("vector changed at %d: %v != %v", i, got.Embedding[i], e.Embedding[i])
		}
	}

	lessons, _ := s.ExportAll(ctx, model.KindLesson)
	if len(lessons) != 1 || lessons[0].ID != "lesson-1" {
		t.Errorf("kind filter: %+v", lessons)
	}
}

func TestSQLiteStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Entries != 0 || empty.Dimensions != 0 || len(empty.Kinds) != 0 {
		t.Errorf("unexpected empty stats: %+v", empty)
	}

	s.Upsert(ctx, []model.EmbeddedEntry{
		entry("l1", model.KindLesson, 1, 0, 0, 0),
		entry("l2", model.KindLesson, 0, 1, 0, 0),
		entry("d1", model.KindDecision, 0, 0, 1, 0),
	})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Entries != 3 || st.Dimensions != 4 {
		t.Errorf("entries=%d dims=%d", st.Entries, st.Dimensions)
	}
	if len(st.Kinds) != 2 || st.Kinds[0].Kind != "lesson" || st.Kinds[0].Count != 2 {
		t.Errorf("kinds = %+v", st.Kinds)
	}
	if st.DBPath != s.Path() {
		t.Errorf("db path = %q", st.DBPath)
	}
}
