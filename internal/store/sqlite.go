package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/cogmem/internal/embedding"
	"github.com/rcliao/cogmem/internal/model"
)

// SQLiteStore implements Store using SQLite. Similarity is computed in Go
// over every stored vector.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		content     TEXT NOT NULL,
		role        TEXT,
		date        TEXT,
		tags        TEXT,
		dims        INTEGER NOT NULL,
		vector      BLOB NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_embeddings_kind ON embeddings(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dims returns the established vector length, or 0 for an empty store.
func (s *SQLiteStore) dims(ctx context.Context, q queryRower) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx, `SELECT dims FROM embeddings ORDER BY rowid LIMIT 1`).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dimensions: %w", err)
	}
	return dims, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, entries []model.EmbeddedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dims, err := s.dims(ctx, tx)
	if err != nil {
		return err
	}
	dims, err = CheckDimensions(dims, entries)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		var tagsJSON *string
		if len(e.Tags) > 0 {
			b, _ := json.Marshal(e.Tags)
			t := string(b)
			tagsJSON = &t
		}

		// ON CONFLICT keeps the original rowid, so insertion order survives
		// re-indexing.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO embeddings (id, kind, content, role, date, tags, dims, vector, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   kind = excluded.kind, content = excluded.content, role = excluded.role,
			   date = excluded.date, tags = excluded.tags, dims = excluded.dims,
			   vector = excluded.vector, updated_at = excluded.updated_at`,
			e.ID, string(e.Kind), e.Content, nullString(e.Role), nullString(e.Date), tagsJSON,
			dims, embedding.MarshalVector(e.Embedding), now)
		if err != nil {
			return fmt.Errorf("upsert embedding %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings (nothing written): %w", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete embedding %s: %w", id, err)
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete (nothing removed): %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM embeddings ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.EmbeddedEntry, error) {
	var e model.EmbeddedEntry
	var kind string
	var role, date, tagsJSON sql.NullString
	var blob []byte

	if err := row.Scan(&e.ID, &kind, &e.Content, &role, &date, &tagsJSON, &blob); err != nil {
		return e, err
	}

	e.Kind = model.Kind(kind)
	e.Role = role.String
	e.Date = date.String
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &e.Tags)
	}
	v, err := embedding.UnmarshalVector(blob)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Embedding = v
	return e, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
