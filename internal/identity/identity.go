// Package identity manages the stable anonymous user id attached to
// reports and graph writes.
package identity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonesrussell/feedguard/internal/logger"
)

// storeKey is where the user id lives in the local store.
const storeKey = "user_id"

// Store is the minimal persistence needed for the identity.
type Store interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Load returns the persisted anonymous user id, minting and persisting
// a fresh one on first run.
func Load(store Store) (string, error) {
	existing, err := store.GetValue(storeKey)
	if err != nil {
		return "", fmt.Errorf("load user id: %w", err)
	}
	if existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := store.SetValue(storeKey, id); err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	return id, nil
}

// LoadOrTransient returns the persisted anonymous user id, minting a
// transient one for the current session when the store cannot be read
// or written. Identity persistence is never fatal.
func LoadOrTransient(store Store, log logger.Logger) string {
	id, err := Load(store)
	if err != nil {
		id = uuid.NewString()
		log.Warn("User identity not persistable, minted transient id",
			logger.Error(err),
		)
	}
	return id
}
