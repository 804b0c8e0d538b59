// Package outbox buffers outbound feedback records durably until the
// remote ingestion service acknowledges them. Two structurally
// identical queues exist: user reports and borderline review items.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/retry"
	"github.com/jonesrussell/feedguard/internal/telemetry"
)

// Storage keys for persisted queues.
const (
	ReportStoreKey = "report_queue"
	ReviewStoreKey = "review_queue"
)

// Defaults used when the configuration leaves these unset.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
)

// ErrNothingToFlush is returned by Flush when the queue is empty.
var ErrNothingToFlush = errors.New("outbox queue is empty")

// Store persists the full queue contents under a key so buffered items
// survive process restarts.
type Store interface {
	Save(key string, items []domain.OutboxItem) error
	Load(key string) ([]domain.OutboxItem, error)
}

// Submitter delivers one batch to the remote endpoint. A batch either
// fully succeeds or is fully retried; partial success is not modeled.
type Submitter interface {
	Submit(ctx context.Context, items []domain.OutboxItem) error
}

// Queue is a FIFO outbox. Items are held in memory, persisted on every
// mutation, and flushed in batches on a timer or when the batch size is
// reached. Delivery is at-least-once: the remote side must tolerate
// duplicates.
type Queue struct {
	kind      domain.QueueKind
	storeKey  string
	store     Store
	submitter Submitter
	log       logger.Logger

	batchSize     int
	flushInterval time.Duration
	retryCfg      retry.Config

	mu    sync.Mutex
	items []domain.OutboxItem

	kick chan struct{}
}

// NewQueue creates an outbox queue.
func NewQueue(
	kind domain.QueueKind,
	storeKey string,
	store Store,
	submitter Submitter,
	batchSize int,
	flushInterval time.Duration,
	log logger.Logger,
) *Queue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Queue{
		kind:          kind,
		storeKey:      storeKey,
		store:         store,
		submitter:     submitter,
		log:           log,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryCfg:      retry.DefaultConfig(),
		kick:          make(chan struct{}, 1),
	}
}

// Restore loads items persisted by a prior session ahead of anything
// enqueued since startup, then persists the merged queue. Call before
// any Enqueue and before Run: Enqueue writes the full in-memory queue
// to the store, so one that lands first overwrites the prior session's
// items with only its own.
func (q *Queue) Restore() error {
	persisted, err := q.store.Load(q.storeKey)
	if err != nil {
		return err
	}
	if len(persisted) == 0 {
		return nil
	}

	q.mu.Lock()
	q.items = append(persisted, q.items...)
	count := len(q.items)
	q.persistLocked()
	q.mu.Unlock()

	q.log.Info("Restored persisted outbox items",
		logger.String("queue", string(q.kind)),
		logger.Int("restored", len(persisted)),
		logger.Int("total", count),
	)
	return nil
}

// Enqueue appends an item and persists the queue. A persistence failure
// only costs durability across restarts, so it is logged and the item
// stays buffered in memory.
func (q *Queue) Enqueue(item domain.OutboxItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	depth := len(q.items)
	q.persistLocked()
	q.mu.Unlock()

	telemetry.OutboxDepth.WithLabelValues(string(q.kind)).Set(float64(depth))

	if depth >= q.batchSize {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush submits up to batchSize oldest items. On success exactly the
// submitted items are removed; on failure the batch stays queued for
// the next trigger.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return ErrNothingToFlush
	}
	n := len(q.items)
	if n > q.batchSize {
		n = q.batchSize
	}
	batch := make([]domain.OutboxItem, n)
	copy(batch, q.items[:n])
	q.mu.Unlock()

	err := retry.Do(ctx, q.retryCfg, func() error {
		return q.submitter.Submit(ctx, batch)
	})
	if err != nil {
		telemetry.OutboxFlushFailures.WithLabelValues(string(q.kind)).Inc()
		q.log.Warn("Outbox flush failed, batch stays queued",
			logger.String("queue", string(q.kind)),
			logger.Int("batch_size", len(batch)),
			logger.Error(err),
		)
		return err
	}

	q.mu.Lock()
	q.items = q.items[n:]
	remaining := len(q.items)
	q.persistLocked()
	q.mu.Unlock()

	telemetry.OutboxFlushed.WithLabelValues(string(q.kind)).Add(float64(len(batch)))
	telemetry.OutboxDepth.WithLabelValues(string(q.kind)).Set(float64(remaining))

	q.log.Info("Flushed outbox batch",
		logger.String("queue", string(q.kind)),
		logger.Int("flushed", len(batch)),
		logger.Int("remaining", remaining),
	)
	return nil
}

// Run flushes on a fixed interval and whenever the batch-size threshold
// kicks, until the context ends.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-q.kick:
		}

		if err := q.Flush(ctx); err != nil && !errors.Is(err, ErrNothingToFlush) {
			// Already logged in Flush; next trigger retries.
			continue
		}
	}
}

// persistLocked writes the full queue to the store. Caller holds q.mu.
func (q *Queue) persistLocked() {
	if err := q.store.Save(q.storeKey, q.items); err != nil {
		q.log.Warn("Failed to persist outbox queue, continuing in memory",
			logger.String("queue", string(q.kind)),
			logger.Error(err),
		)
	}
}
