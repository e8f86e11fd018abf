package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/velestore/podbor/internal/resolver"
	"github.com/velestore/podbor/internal/session"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		event TEXT NOT NULL,
		text TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON session_events(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON session_events(created_at);

	CREATE TABLE IF NOT EXISTS popular_products (
		name TEXT NOT NULL,
		link TEXT NOT NULL,
		category TEXT,
		description TEXT,
		price REAL,
		shown_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (name, link)
	);

	CREATE INDEX IF NOT EXISTS idx_popular_count ON popular_products(shown_count DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// LogEvent appends one session event.
func (s *SQLiteStorage) LogEvent(ctx context.Context, sessionID, event, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (id, session_id, event, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, event, text, time.Now(),
	)
	return err
}

// ListEvents returns events in chronological order. limit <= 0 returns all.
func (s *SQLiteStorage) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, event, text, created_at
		 FROM session_events ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventCounts aggregates events by name.
func (s *SQLiteStorage) EventCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event, COUNT(*) FROM session_events GROUP BY event`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var event string
		var n int64
		if err := rows.Scan(&event, &n); err != nil {
			return nil, err
		}
		counts[event] = n
	}
	return counts, rows.Err()
}

// FailedQueries returns query events with no result_sent before the session's
// next query. A query still waiting on clarification counts as failed until
// it converts.
func (s *SQLiteStorage) FailedQueries(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, event, text, created_at
		 FROM session_events ORDER BY session_id, created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	var failed []Event
	var pending *Event
	currentSession := ""
	flush := func() {
		if pending != nil {
			failed = append(failed, *pending)
			pending = nil
		}
	}
	for i := range events {
		ev := events[i]
		if ev.SessionID != currentSession {
			flush()
			currentSession = ev.SessionID
		}
		switch ev.Event {
		case session.EventQuery:
			flush()
			pending = &events[i]
		case session.EventResultSent:
			pending = nil
		}
	}
	flush()
	return failed, nil
}

// IncrementShown bumps the shown counter for a product, inserting the record
// the first time the product is shown.
func (s *SQLiteStorage) IncrementShown(ctx context.Context, r resolver.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO popular_products (name, link, category, description, price, shown_count)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(name, link) DO UPDATE SET shown_count = shown_count + 1`,
		r.Name, r.Link, r.Category, r.Description, r.Price,
	)
	return err
}

// TopProducts returns the most shown products, count descending, name
// ascending on ties.
func (s *SQLiteStorage) TopProducts(ctx context.Context, limit int) ([]PopularProduct, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, link, category, description, price, shown_count
		 FROM popular_products ORDER BY shown_count DESC, name LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []PopularProduct
	for rows.Next() {
		var p PopularProduct
		if err := rows.Scan(&p.Name, &p.Link, &p.Category, &p.Description, &p.Price, &p.ShownCount); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Event, &ev.Text, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
