package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is the catalog row for one profile. Emails are never stored.
type Entry struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastOpenedAt time.Time `json:"lastOpenedAt"`
	OpenCount    int       `json:"openCount"`
}

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("profile not found")

// Catalog records when each profile was first and last opened
type Catalog struct {
	db  *sql.DB
	now func() time.Time
}

// OpenCatalog opens (creating if needed) the sqlite catalog at path
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	c := &Catalog{db: db, now: time.Now}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			last_opened_at INTEGER NOT NULL,
			open_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_last_opened ON profiles(last_opened_at);
	`)
	return err
}

// RecordOpen inserts id or bumps its open counter and timestamp
func (c *Catalog) RecordOpen(ctx context.Context, id string) error {
	now := c.now().UnixMilli()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO profiles (id, created_at, last_opened_at, open_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			last_opened_at = excluded.last_opened_at,
			open_count = profiles.open_count + 1
	`, id, now, now)
	if err != nil {
		return fmt.Errorf("failed to record profile open: %w", err)
	}
	return nil
}

// Get returns the entry for id
func (c *Catalog) Get(ctx context.Context, id string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, created_at, last_opened_at, open_count FROM profiles WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return e, nil
}

// List returns every entry, most recently opened first
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, created_at, last_opened_at, open_count FROM profiles ORDER BY last_opened_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e                 Entry
		created, lastOpen int64
	)
	if err := s.Scan(&e.ID, &created, &lastOpen, &e.OpenCount); err != nil {
		return nil, err
	}
	e.CreatedAt = time.UnixMilli(created)
	e.LastOpenedAt = time.UnixMilli(lastOpen)
	return &e, nil
}
