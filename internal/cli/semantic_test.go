package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/cogmem/internal/config"
	"github.com/rcliao/cogmem/internal/store"
	"github.com/rcliao/cogmem/internal/store/chromem"
)

func TestOpenVectorStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		check   func(store.Store) bool
	}{
		{config.StoreMemory, func(s store.Store) bool { _, ok := s.(*store.MemoryStore); return ok }},
		{config.StoreSQLite, func(s store.Store) bool { _, ok := s.(*store.SQLiteStore); return ok }},
		{config.StoreChromem, func(s store.Store) bool { _, ok := s.(*chromem.Store); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.Config{
				SemanticDB: filepath.Join(dir, tt.backend),
				Semantic:   config.Semantic{Store: tt.backend},
			}
			s, err := openVectorStore(cfg)
			if err != nil {
				t.Fatalf("open %s: %v", tt.backend, err)
			}
			defer s.Close()
			if !tt.check(s) {
				t.Errorf("unexpected store type %T", s)
			}
			if n, err := s.Count(context.Background()); err != nil || n != 0 {
				t.Errorf("count = %d, %v", n, err)
			}
		})
	}
}

func TestIndexBankPersistsVocabulary(t *testing.T) {
	t.Setenv("COGMEM_EMBED_PROVIDER", "")
	t.Setenv("COGMEM_CONFIG", "")
	t.Setenv("COGMEM_LOG_LEVEL", "")
	dir := t.TempDir()

	bankMD := "# Bank\n\n## Lessons\n\n1. Keep the stream append-only\n2. Rebuild the vocabulary after edits\n"
	if err := os.WriteFile(filepath.Join(dir, "bank.md"), []byte(bankMD), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(config.Options{Dir: dir})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Semantic.Store = config.StoreMemory

	idx := openIndex(context.Background(), cfg, newLogger(cfg), false)
	defer idx.close()

	n, err := idx.indexBank(context.Background())
	if err != nil {
		t.Fatalf("index bank: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d entries, want 2", n)
	}
	if _, err := os.Stat(cfg.VocabFile); err != nil {
		t.Errorf("vocabulary not saved: %v", err)
	}

	reopened := openIndex(context.Background(), cfg, newLogger(cfg), true)
	defer reopened.close()
	if _, err := reopened.provider.Embed(context.Background(), "stream"); err != nil {
		t.Errorf("reopened provider should load the saved vocabulary: %v", err)
	}
}
