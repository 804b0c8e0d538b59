package outbox

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/jonesrussell/feedguard/internal/domain"
)

// LocalStore is sqlite-backed key/value persistence for state that must
// survive restarts: the outbox queues and the anonymous user id.
type LocalStore struct {
	db *sql.DB
}

// OpenLocalStore opens (creating if needed) the sqlite file at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	// Single writer; sqlite handles its own locking.
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS local_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create local store schema: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// NewLocalStore wraps an existing database handle. Used by tests.
func NewLocalStore(db *sql.DB) *LocalStore {
	return &LocalStore{db: db}
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Save persists the full queue contents under key.
func (s *LocalStore) Save(key string, items []domain.OutboxItem) error {
	if items == nil {
		items = []domain.OutboxItem{}
	}
	value, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal queue %s: %w", key, err)
	}
	return s.SetValue(key, string(value))
}

// Load returns the queue persisted under key, or nil if none exists.
func (s *LocalStore) Load(key string) ([]domain.OutboxItem, error) {
	value, err := s.GetValue(key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var items []domain.OutboxItem
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("unmarshal queue %s: %w", key, err)
	}
	return items, nil
}

// SetValue upserts a raw string value under key.
func (s *LocalStore) SetValue(key, value string) error {
	const query = `
		INSERT INTO local_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// GetValue returns the raw string value under key, or "" if absent.
func (s *LocalStore) GetValue(key string) (string, error) {
	const query = `SELECT value FROM local_store WHERE key = ?`

	var value string
	err := s.db.QueryRow(query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}
