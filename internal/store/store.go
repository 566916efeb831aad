// Package store persists events and pending choices in sqlite. It is the
// only stateful collaborator of the engine; everything above it works on
// plain model values.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database holding the schedule and the per-user
// pending disambiguation state.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open creates or opens the database at dbPath and ensures the schema
// exists. Naive schedule timestamps are interpreted in loc.
func Open(dbPath string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// WAL keeps webhook handling, admin writes and the sweep from
	// blocking each other; busy_timeout covers the rest.
	dsn := "file:" + url.PathEscape(dbPath) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, loc: loc}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Location returns the timezone schedule timestamps are interpreted in.
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_datetime_local TEXT NOT NULL,
		venue_name TEXT NOT NULL,
		address TEXT NOT NULL,
		field_number TEXT,
		parking_notes TEXT,
		opponent TEXT,
		arrival_minutes_before INTEGER DEFAULT 45,
		is_active INTEGER DEFAULT 1,
		import_key TEXT UNIQUE,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pending_choices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		pending_intent TEXT NOT NULL,
		candidate_event_ids TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, group_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pending_choices_expires
	ON pending_choices(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Schedule timestamps are naive local strings as entered in the admin
// form's datetime-local input.
const (
	startLayout        = "2006-01-02T15:04"
	startLayoutSeconds = "2006-01-02T15:04:05"
)

func (s *Store) parseStart(v string) (time.Time, error) {
	if t, err := time.ParseInLocation(startLayoutSeconds, v, s.loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(startLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) formatStart(t time.Time) string {
	return t.In(s.loc).Format(startLayout)
}

// Expiry timestamps are RFC3339 UTC so string comparison in SQL orders
// them correctly.
const expiryLayout = time.RFC3339

func formatExpiry(t time.Time) string {
	return t.UTC().Format(expiryLayout)
}
