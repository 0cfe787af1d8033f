// Package chromem implements store.Store on top of chromem-go, an embedded
// pure Go vector database.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/store"
)

const collectionName = "cogmem"

// manifest records what chromem cannot answer itself: insertion order, the
// established dimensionality, and entries whose vector is all zeros. chromem
// normalizes every vector it stores, so zero vectors are kept here instead.
type manifest struct {
	Dims int                          `json:"dims"`
	IDs  []string                     `json:"ids"`
	Zero map[string]model.MemoryEntry `json:"zero,omitempty"`
}

// Store wraps a chromem-go collection.
type Store struct {
	mu           sync.Mutex
	db           *chromem.DB
	col          *chromem.Collection
	manifestPath string
	m            manifest
}

var _ store.Store = (*Store)(nil)

// New creates an in-memory store.
func New() (*Store, error) {
	return newStore(chromem.NewDB(), "")
}

// Open creates or reopens a store persisted under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chromem dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "db"), false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return newStore(db, filepath.Join(dir, "manifest.json"))
}

func newStore(db *chromem.DB, manifestPath string) (*Store, error) {
	col, err := db.GetOrCreateCollection(
		collectionName,
		nil, // No collection metadata
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s := &Store{
		db:           db,
		col:          col,
		manifestPath: manifestPath,
		m:            manifest{IDs: []string{}, Zero: map[string]model.MemoryEntry{}},
	}
	if err := s.loadManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadManifest() error {
	if s.manifestPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read chromem manifest %s: %w", s.manifestPath, err)
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		return fmt.Errorf("parse chromem manifest %s: %w", s.manifestPath, err)
	}
	if s.m.IDs == nil {
		s.m.IDs = []string{}
	}
	if s.m.Zero == nil {
		s.m.Zero = map[string]model.MemoryEntry{}
	}
	return nil
}

func (s *Store) saveManifest() error {
	if s.manifestPath == "" {
		return nil
	}
	data, err := json.Marshal(s.m)
	if err != nil {
		return fmt.Errorf("encode chromem manifest: %w", err)
	}
	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write chromem manifest %s: %w", s.manifestPath, err)
	}
	if err := os.Rename(tmp, s.manifestPath); err != nil {
		return fmt.Errorf("replace chromem manifest %s: %w", s.manifestPath, err)
	}
	return nil
}

func (s *Store) known(id string) bool {
	for _, existing := range s.m.IDs {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Store) Upsert(ctx context.Context, entries []model.EmbeddedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := store.CheckDimensions(s.m.Dims, entries)
	if err != nil {
		return err
	}

	for _, e := range entries {
		known := s.known(e.ID)
		_, wasZero := s.m.Zero[e.ID]

		if embedding.Magnitude(e.Embedding) == 0 {
			if known && !wasZero {
				if err := s.col.Delete(ctx, nil, nil, e.ID); err != nil {
					return fmt.Errorf("delete document %s: %w", e.ID, err)
				}
			}
			s.m.Zero[e.ID] = e.MemoryEntry
		} else {
			doc, err := toDocument(e)
			if err != nil {
				return err
			}
			if err := s.col.AddDocument(ctx, doc); err != nil {
				return fmt.Errorf("add document %s: %w", e.ID, err)
			}
			delete(s.m.Zero, e.ID)
		}

		if !known {
			s.m.IDs = append(s.m.IDs, e.ID)
		}
	}
	s.m.Dims = dims
	return s.saveManifest()
}

func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.m.Dims > 0 && len(query) != s.m.Dims {
		return nil, fmt.Errorf("search: %w: query has %d, store has %d",
			embedding.ErrDimensionMismatch, len(query), s.m.Dims)
	}

	zeroQuery := embedding.Magnitude(query) == 0
	n := s.col.Count()
	k := n
	if topK > 0 && topK < n && !zeroQuery {
		k = topK
	}

	results := make([]store.Result, 0, k+len(s.m.Zero))
	if k > 0 {
		probe := query
		if zeroQuery {
			// chromem would divide by zero normalizing the query; any unit
			// vector retrieves every document and scores are reset to 0.
			probe = make([]float32, len(query))
			probe[0] = 1
		}
		// chromem-go requires nResults <= collection size
		found, err := s.col.QueryEmbedding(ctx, probe, k, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
		for _, r := range found {
			res, err := fromResult(r)
			if err != nil {
				return nil, err
			}
			if zeroQuery {
				res.Score = 0
			}
			results = append(results, res)
		}
	}

	for _, id := range s.m.IDs {
		if e, ok := s.m.Zero[id]; ok {
			results = append(results, store.Result{MemoryEntry: e})
		}
	}

	if zeroQuery {
		pos := make(map[string]int, len(s.m.IDs))
		for i, id := range s.m.IDs {
			pos[id] = i
		}
		sort.SliceStable(results, func(i, j int) bool {
			return pos[results[i].ID] < pos[results[j].ID]
		})
	} else {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Store) Remove(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool)
	var docs []string
	for _, id := range ids {
		if drop[id] || !s.known(id) {
			continue
		}
		drop[id] = true
		if _, ok := s.m.Zero[id]; ok {
			delete(s.m.Zero, id)
			continue
		}
		docs = append(docs, id)
	}
	if len(drop) == 0 {
		return 0, nil
	}

	if len(docs) > 0 {
		if err := s.col.Delete(ctx, nil, nil, docs...); err != nil {
			return 0, fmt.Errorf("delete documents: %w", err)
		}
	}

	kept := s.m.IDs[:0]
	for _, id := range s.m.IDs {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.m.IDs = kept
	if len(s.m.IDs) == 0 {
		s.m.Dims = 0
	}
	return len(drop), s.saveManifest()
}

func (s *Store) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.m.IDs...), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m.IDs), nil
}

// Close releases resources. chromem-go writes documents as they are added,
// so there is nothing to flush.
func (s *Store) Close() error {
	return nil
}

func toDocument(e model.EmbeddedEntry) (chromem.Document, error) {
	metadata := map[string]string{
		"kind": string(e.Kind),
	}
	if e.Role != "" {
		metadata["role"] = e.Role
	}
	if e.Date != "" {
		metadata["date"] = e.Date
	}
	if len(e.Tags) > 0 {
		b, err := json.Marshal(e.Tags)
		if err != nil {
			return chromem.Document{}, fmt.Errorf("marshal tags: %w", err)
		}
		metadata["tags"] = string(b)
	}

	return chromem.Document{
		ID:        e.ID,
		Content:   e.Content,
		Embedding: append([]float32(nil), e.Embedding...),
		Metadata:  metadata,
	}, nil
}

func fromResult(r chromem.Result) (store.Result, error) {
	res := store.Result{
		MemoryEntry: model.MemoryEntry{
			ID:      r.ID,
			Kind:    model.Kind(r.Metadata["kind"]),
			Content: r.Content,
			Role:    r.Metadata["role"],
			Date:    r.Metadata["date"],
		},
		Score: float64(r.Similarity),
	}
	if tags := r.Metadata["tags"]; tags != "" {
		if err := json.Unmarshal([]byte(tags), &res.Tags); err != nil {
			return res, fmt.Errorf("unmarshal tags of %s: %w", r.ID, err)
		}
	}
	return res, nil
}
