// Package history provides a SQLite-backed archive of delivered
// messages.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL,
	app TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	acked INTEGER NOT NULL DEFAULT 0,
	sent_at TEXT NOT NULL DEFAULT '',
	delivered_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_delivered_at ON deliveries(delivered_at);
`

// Entry is one archived delivery.
type Entry struct {
	RowID       int64
	MessageID   int64
	App         string
	Title       string
	Body        string
	Priority    int
	Acked       int
	SentAt      string
	DeliveredAt string
}

// Store is a SQLite-backed delivery archive.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive at the provided path.
func NewStore(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("history: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("history: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("history: set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("history: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record archives one delivery. DeliveredAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.DeliveredAt == "" {
		e.DeliveredAt = utcNow()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (message_id, app, title, body, priority, acked, sent_at, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MessageID, e.App, e.Title, e.Body, e.Priority, e.Acked, e.SentAt, e.DeliveredAt)
	if err != nil {
		return fmt.Errorf("history: record delivery: %w", err)
	}
	return nil
}

// Recent returns the latest deliveries, oldest first, at most limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, app, title, body, priority, acked, sent_at, delivered_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list recent: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("history: list recent: %w", err)
	}
	// The query walks newest to oldest; readers want chronological
	// order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// After returns every delivery archived after the given row id, oldest
// first. It is the tail-follow primitive.
func (s *Store) After(ctx context.Context, rowID int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, app, title, body, priority, acked, sent_at, delivered_at
		 FROM deliveries WHERE id > ? ORDER BY id ASC`, rowID)
	if err != nil {
		return nil, fmt.Errorf("history: list after: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("history: list after: %w", err)
	}
	return entries, nil
}

// LastRowID returns the newest row id, or zero for an empty archive.
func (s *Store) LastRowID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM deliveries`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("history: last row id: %w", err)
	}
	return id, nil
}

// Count returns the number of archived deliveries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliveries`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Prune deletes deliveries older than keepDays and returns how many
// rows went. A non-positive keepDays disables pruning.
func (s *Store) Prune(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE delivered_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return deleted, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RowID, &e.MessageID, &e.App, &e.Title, &e.Body,
			&e.Priority, &e.Acked, &e.SentAt, &e.DeliveredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const timeLayout = "2006-01-02T15:04:05Z"

func utcNow() string {
	return time.Now().UTC().Format(timeLayout)
}
