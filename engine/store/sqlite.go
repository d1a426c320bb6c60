package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/WessleyAI/storyscout/engine/domain"
)

// SQLiteConfig locates the local database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SQLite keeps the batch in a single-file database so separate CLI
// invocations read what the last run wrote.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates the parent directory and schema if needed.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig, log *slog.Logger) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, log: log}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("store: initializing sqlite schema: %w", err)
	}
	return nil
}

const sqliteUpsert = `INSERT INTO posts (id, doc) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return domain.PersistenceError("sqlite clear", err)
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, p domain.Post) error {
	doc, err := json.Marshal(toDocument(p))
	if err != nil {
		return domain.PersistenceError("sqlite encode "+p.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsert, p.ID, string(doc)); err != nil {
		return domain.PersistenceError("sqlite put "+p.ID, err)
	}
	return nil
}

// PutAll writes every post in one transaction.
func (s *SQLite) PutAll(ctx context.Context, posts []domain.Post) error {
	posts = dedupe(posts)
	if len(posts) == 0 {
		return nil
	}
	op := fmt.Sprintf("sqlite put %d posts", len(posts))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistenceError(op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return domain.PersistenceError(op, err)
	}
	defer stmt.Close()
	for _, p := range posts {
		doc, err := json.Marshal(toDocument(p))
		if err != nil {
			return domain.PersistenceError(op, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, string(doc)); err != nil {
			return domain.PersistenceError(op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.PersistenceError(op, err)
	}
	return nil
}

// ScanAll returns posts in insertion order. Rows whose doc is not valid JSON
// are skipped like any other malformed document.
func (s *SQLite) ScanAll(ctx context.Context) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM posts ORDER BY rowid`)
	if err != nil {
		return nil, domain.PersistenceError("sqlite scan", err)
	}
	defer rows.Close()

	var docs []map[string]any
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, domain.PersistenceError("sqlite scan", err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.log.Warn("skipping malformed document", "backend", BackendSQLite, "id", id, "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("sqlite scan", err)
	}
	return decodeAll(s.log, BackendSQLite, docs), nil
}

func (s *SQLite) Close(_ context.Context) error {
	return s.db.Close()
}
