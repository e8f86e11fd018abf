// Package storage persists session audit events and product popularity
// counts.
package storage

import (
	"context"
	"time"

	"github.com/velestore/podbor/internal/resolver"
)

// Event is one session audit record.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PopularProduct is a product together with how often it was shown. Identity
// is the (Name, Link) pair; the remaining fields are kept for display.
type PopularProduct struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Link        string  `json:"link"`
	ShownCount  int64   `json:"shown_count"`
}

// Storage defines audit-log and popularity persistence.
type Storage interface {
	// LogEvent appends one session event.
	LogEvent(ctx context.Context, sessionID, event, text string) error
	// ListEvents returns events in chronological order. limit <= 0 means all.
	ListEvents(ctx context.Context, limit int) ([]Event, error)
	// EventCounts aggregates events by name.
	EventCounts(ctx context.Context) (map[string]int64, error)
	// FailedQueries returns query events that were not followed by a
	// result_sent before the session's next query.
	FailedQueries(ctx context.Context) ([]Event, error)

	// IncrementShown bumps the shown counter for a product, inserting the
	// record on first sight.
	IncrementShown(ctx context.Context, r resolver.Result) error
	// TopProducts returns the most shown products, count descending.
	TopProducts(ctx context.Context, limit int) ([]PopularProduct, error)

	Close() error
}
