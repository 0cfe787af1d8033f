package store

import (
	"context"
	"fmt"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

const selectEntries = `SELECT id, kind, content, role, date, tags, vector FROM embeddings`

// Search loads every vector and ranks it against query.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	dims, err := s.dims(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dims > 0 && len(query) != dims {
		return nil, fmt.Errorf("search: %w: query has %d, store has %d",
			embedding.ErrDimensionMismatch, len(query), dims)
	}

	candidates, err := s.ExportAll(ctx, "")
	if err != nil {
		return nil, err
	}
	return Rank(query, candidates, topK)
}

// ExportAll returns stored entries with their vectors in insertion order,
// optionally filtered by kind.
func (s *SQLiteStore) ExportAll(ctx context.Context, kind model.Kind) ([]model.EmbeddedEntry, error) {
	query := selectEntries + ` ORDER BY rowid`
	args := []interface{}{}
	if kind != "" {
		query = selectEntries + ` WHERE kind = ? ORDER BY rowid`
		args = append(args, string(kind))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	entries := []model.EmbeddedEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
