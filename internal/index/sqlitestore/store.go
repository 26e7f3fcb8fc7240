// Package sqlitestore persists index generations in a local SQLite file.
// A generation is saved as one transaction that inserts the new rows, flips
// the active marker and purges prior generations, so readers observe either
// the old generation in full or the new one in full.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"courserec/internal/domain"
	"courserec/internal/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	embedder   TEXT NOT NULL,
	dimension  INTEGER NOT NULL,
	active     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS courses (
	generation_id TEXT NOT NULL,
	code          TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	metadata      TEXT NOT NULL,
	rag_text      TEXT NOT NULL,
	PRIMARY KEY (generation_id, code)
);
`

// Store is a SQLite-backed index.Store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the index database at path.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Save persists the generation and makes it the active one, removing all
// prior generations in the same transaction.
func (s *Store) Save(ctx context.Context, gen *domain.Generation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (id, created_at, embedder, dimension, active) VALUES (?, ?, ?, ?, 0)`,
		gen.ID, gen.CreatedAt.UTC().Format(time.RFC3339Nano), gen.Embedder, gen.Dimension,
	); err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO courses (generation_id, code, embedding, metadata, rag_text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing course insert: %w", err)
	}
	defer insert.Close()
	for i := range gen.Vectors {
		v := &gen.Vectors[i]
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", v.Code, err)
		}
		if _, err := insert.ExecContext(ctx, gen.ID, v.Code, index.EncodeEmbedding(v.Embedding), string(meta), v.RAGText); err != nil {
			return fmt.Errorf("inserting course %s: %w", v.Code, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE generation_id != ?`, gen.ID); err != nil {
		return fmt.Errorf("purging previous courses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE id != ?`, gen.ID); err != nil {
		return fmt.Errorf("purging previous generations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE generations SET active = 1 WHERE id = ?`, gen.ID); err != nil {
		return fmt.Errorf("activating generation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing generation: %w", err)
	}
	return nil
}

// Load returns the active generation, with vectors in code order, or
// index.ErrNoGeneration when nothing has been persisted.
func (s *Store) Load(ctx context.Context) (*domain.Generation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, embedder, dimension FROM generations WHERE active = 1`)
	var gen domain.Generation
	var createdAt string
	if err := row.Scan(&gen.ID, &createdAt, &gen.Embedder, &gen.Dimension); err != nil {
		if err == sql.ErrNoRows {
			return nil, index.ErrNoGeneration
		}
		return nil, fmt.Errorf("loading generation: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing generation timestamp: %w", err)
	}
	gen.CreatedAt = ts

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, embedding, metadata, rag_text FROM courses WHERE generation_id = ? ORDER BY code`, gen.ID)
	if err != nil {
		return nil, fmt.Errorf("loading courses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.IndexedVector
		var blob []byte
		var meta string
		if err := rows.Scan(&v.Code, &blob, &meta, &v.RAGText); err != nil {
			return nil, fmt.Errorf("scanning course row: %w", err)
		}
		if v.Embedding, err = index.DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", v.Code, err)
		}
		if len(v.Embedding) != gen.Dimension {
			return nil, fmt.Errorf("stored embedding for %s has dimension %d, generation says %d", v.Code, len(v.Embedding), gen.Dimension)
		}
		if err := json.Unmarshal([]byte(meta), &v.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", v.Code, err)
		}
		gen.Vectors = append(gen.Vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating course rows: %w", err)
	}
	return &gen, nil
}
