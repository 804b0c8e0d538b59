// Package flagstore is the long-term store of links confirmed or
// detected as phishing. The store is append-only; the only read path
// is enumeration for display.
package flagstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FlaggedLink is one stored phishing link.
type FlaggedLink struct {
	URL       string    `db:"url"        json:"url"`
	UserID    string    `db:"user_id"    json:"user_id"`
	FlaggedAt time.Time `db:"flagged_at" json:"flagged_at"`
}

// Store persists flagged links in the document store.
type Store struct {
	db *sqlx.DB
}

// New creates a flagged-link store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Add appends one flagged link. Repeated flags of the same URL are
// separate observations, not duplicates.
func (s *Store) Add(ctx context.Context, url, userID string) error {
	const query = `
		INSERT INTO flagged_links (url, user_id, flagged_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, url, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert flagged link: %w", err)
	}
	return nil
}

// List returns the most recently flagged links, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]FlaggedLink, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT url, user_id, flagged_at
		FROM flagged_links
		ORDER BY flagged_at DESC
		LIMIT $1`

	links := []FlaggedLink{}
	if err := s.db.SelectContext(ctx, &links, query, limit); err != nil {
		return nil, fmt.Errorf("list flagged links: %w", err)
	}
	return links, nil
}
