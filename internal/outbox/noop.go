package outbox

import "github.com/jonesrussell/feedguard/internal/domain"

// NoopStore is the degraded persistence used when the sqlite store
// cannot be opened. Queues keep operating memory-only for the current
// session; nothing survives a restart.
type NoopStore struct{}

// Save discards the queue contents.
func (NoopStore) Save(string, []domain.OutboxItem) error { return nil }

// Load reports an empty queue.
func (NoopStore) Load(string) ([]domain.OutboxItem, error) { return nil, nil }

// SetValue discards the value.
func (NoopStore) SetValue(string, string) error { return nil }

// GetValue reports an absent key.
func (NoopStore) GetValue(string) (string, error) { return "", nil }
