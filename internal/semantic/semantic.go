// Package semantic indexes memory entries as vectors and answers natural
// language queries against them.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/ristretto"

	"github.com/rcliao/cogmem/internal/bank"
	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
	"github.com/rcliao/cogmem/internal/store"
)

const (
	DefaultTopK      = 5
	DefaultMinScore  = 0.1
	DefaultCacheSize = 256
)

// Options configures a Manager.
type Options struct {
	Logger *slog.Logger

	// CacheSize bounds the number of cached query embeddings. Negative
	// disables the cache; zero uses DefaultCacheSize.
	CacheSize int64
}

// QueryOpts tunes a single query. Zero values take the defaults; a negative
// MinScore disables score filtering.
type QueryOpts struct {
	TopK     int
	MinScore float64
}

// Manager ties an embedding provider to a vector store.
type Manager struct {
	provider embedding.Provider
	store    store.Store
	logger   *slog.Logger
	cache    *ristretto.Cache
}

// NewManager returns a Manager over provider and st. The caller keeps
// ownership of st.
func NewManager(provider embedding.Provider, st store.Store, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	m := &Manager{provider: provider, store: st, logger: opts.Logger}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: size * 10,
			MaxCost:     size,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		m.cache = cache
	}
	return m, nil
}

// Provider returns the embedding provider.
func (m *Manager) Provider() embedding.Provider { return m.provider }

// IndexBank extracts entries from a markdown memory bank and indexes them,
// replacing whatever the store held before. It returns the number of entries
// indexed; an empty extraction writes nothing.
func (m *Manager) IndexBank(ctx context.Context, markdown string) (int, error) {
	entries := bank.Extract(markdown)
	if len(entries) == 0 {
		m.logger.Debug("bank extraction found no entries")
		return 0, nil
	}
	return m.index(ctx, entries, true)
}

// IndexEntries embeds and stores entries. When the provider rebuilds its
// vocabulary from entries, vectors already in the store are no longer
// comparable and entries outside this batch are removed.
func (m *Manager) IndexEntries(ctx context.Context, entries []model.MemoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	_, rebuilds := m.provider.(embedding.VocabularyBuilder)
	return m.index(ctx, entries, rebuilds)
}

func (m *Manager) index(ctx context.Context, entries []model.MemoryEntry, prune bool) (int, error) {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Content
	}

	if vb, ok := m.provider.(embedding.VocabularyBuilder); ok {
		vb.BuildVocabulary(texts)
	}

	vectors, err := m.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed entries: %w", err)
	}
	if len(vectors) != len(entries) {
		return 0, fmt.Errorf("embed entries: provider returned %d vectors for %d entries", len(vectors), len(entries))
	}

	embedded := make([]model.EmbeddedEntry, len(entries))
	for i, e := range entries {
		embedded[i] = model.EmbeddedEntry{MemoryEntry: e, Embedding: vectors[i]}
	}

	err = m.store.Upsert(ctx, embedded)
	if errors.Is(err, embedding.ErrDimensionMismatch) && prune {
		m.logger.Warn("embedding dimensions changed, rebuilding index", "err", err)
		if err := m.removeAll(ctx); err != nil {
			return 0, err
		}
		err = m.store.Upsert(ctx, embedded)
	}
	if err != nil {
		return 0, fmt.Errorf("store embeddings: %w", err)
	}

	if prune {
		if err := m.removeStale(ctx, entries); err != nil {
			return 0, err
		}
	}
	m.clearCache()

	m.logger.Debug("semantic index updated", "entries", len(entries), "dims", m.provider.Dimensions())
	return len(entries), nil
}

func (m *Manager) removeStale(ctx context.Context, keep []model.MemoryEntry) error {
	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list stored ids: %w", err)
	}
	current := make(map[string]bool, len(keep))
	for _, e := range keep {
		current[e.ID] = true
	}
	var stale []string
	for _, id := range ids {
		if !current[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	n, err := m.store.Remove(ctx, stale)
	if err != nil {
		return fmt.Errorf("remove stale entries: %w", err)
	}
	m.logger.Debug("removed stale entries", "count", n)
	return nil
}

func (m *Manager) removeAll(ctx context.Context) error {
	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list stored ids: %w", err)
	}
	if _, err := m.store.Remove(ctx, ids); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

// Query embeds text and returns the closest stored entries.
func (m *Manager) Query(ctx context.Context, text string, opts QueryOpts) ([]store.Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minScore := opts.MinScore
	switch {
	case minScore == 0:
		minScore = DefaultMinScore
	case minScore < 0:
		minScore = math.Inf(-1)
	}

	vec, err := m.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := m.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Manager) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(text); ok {
			return v.([]float32), nil
		}
	}

	vec, err := m.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if m.cache != nil {
		m.cache.Set(text, vec, 1)
		m.cache.Wait()
	}
	return vec, nil
}

func (m *Manager) clearCache() {
	if m.cache != nil {
		m.cache.Clear()
	}
}

// Count returns the number of indexed entries.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// Remove deletes entries from the index.
func (m *Manager) Remove(ctx context.Context, ids []string) (int, error) {
	return m.store.Remove(ctx, ids)
}

// Close releases the query cache. The store is left open.
func (m *Manager) Close() {
	if m.cache != nil {
		m.cache.Close()
	}
}
