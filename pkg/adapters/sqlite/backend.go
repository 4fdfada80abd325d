// Package sqlite stores drafts in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/introspection"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/inkwell/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	key TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	favorited INTEGER NOT NULL DEFAULT 0,
	saved_at TEXT NOT NULL
);
`

// Backend implements core.DraftBackend on a SQLite table.
type Backend struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and initializes the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Backend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &Backend{db: db, path: path}
	if err := b.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// InitSchema creates the drafts table.
func (b *Backend) InitSchema() error {
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Put upserts the draft for key.
func (b *Backend) Put(ctx context.Context, key string, d core.Draft) error {
	tags, err := json.Marshal(nonNil(d.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `INSERT INTO drafts (key, title, body, tags, favorited, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			tags = excluded.tags,
			favorited = excluded.favorited,
			saved_at = excluded.saved_at`
	_, err = b.db.ExecContext(ctx, query, key, d.Title, d.Body, string(tags), d.Favorited, core.FormatTimestamp(d.SavedAt))
	if err != nil {
		return fmt.Errorf("failed to put draft %s: %w", key, err)
	}
	return nil
}

// Get returns the draft for key or core.ErrNotFound.
func (b *Backend) Get(ctx context.Context, key string) (core.Draft, error) {
	query := `SELECT title, body, tags, favorited, saved_at FROM drafts WHERE key = ?`
	row := b.db.QueryRowContext(ctx, query, key)

	var (
		d       core.Draft
		tags    string
		savedAt string
	)
	err := row.Scan(&d.Title, &d.Body, &tags, &d.Favorited, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Draft{}, fmt.Errorf("draft %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Draft{}, fmt.Errorf("failed to get draft %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
		return core.Draft{}, fmt.Errorf("draft %s: %w: tags: %v", key, core.ErrInvalidDraft, err)
	}
	if d.SavedAt, err = core.ParseTimestamp(savedAt); err != nil {
		return core.Draft{}, fmt.Errorf("draft %s: %w: %v", key, core.ErrInvalidDraft, err)
	}
	return d, nil
}

// Delete removes the draft for key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}

// Keys lists draft keys in lexical order.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM drafts ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan draft key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// BackendState exposes internal state for observability.
type BackendState struct {
	Path   string `json:"path"`
	Drafts int    `json:"drafts"`
}

// State implements introspection.Introspectable.
func (b *Backend) State() any {
	var n int
	_ = b.db.QueryRow(`SELECT COUNT(*) FROM drafts`).Scan(&n)
	return BackendState{Path: b.path, Drafts: n}
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "sqlite-drafts"
}

var (
	_ core.DraftBackend            = (*Backend)(nil)
	_ introspection.Introspectable = (*Backend)(nil)
	_ introspection.Component      = (*Backend)(nil)
)
