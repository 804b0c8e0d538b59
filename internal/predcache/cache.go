// Package predcache holds recent link verdicts so repeat scans of the
// same feed do not re-query the classification service.
package predcache

import (
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/feedguard/internal/domain"
)

// DefaultTTL bounds how long a cached verdict stays fresh.
const DefaultTTL = 10 * time.Minute

// Cache is a TTL-bounded map from normalized link to last-known verdict.
// Eviction is lazy: stale entries are dropped on read, so no sweep
// goroutine is needed. Contents are transient and lost on restart.
type Cache struct {
	mu      sync.Mutex
	entries map[string]domain.LinkVerdict
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL. A non-positive TTL falls back
// to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]domain.LinkVerdict),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Normalize returns the cache key form of a link.
func Normalize(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}

// Get returns the fresh verdict for a link, if any. Expired entries are
// evicted and reported as absent.
func (c *Cache) Get(url string) (domain.LinkVerdict, bool) {
	key := Normalize(url)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.LinkVerdict{}, false
	}
	if c.now().Sub(entry.ObservedAt) > c.ttl {
		delete(c.entries, key)
		return domain.LinkVerdict{}, false
	}
	return entry, true
}

// Put records a verdict for a link. An existing entry is only refreshed
// by a strictly newer observation.
func (c *Cache) Put(url string, isPhishing bool) {
	key := Normalize(url)
	observed := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && !observed.After(existing.ObservedAt) {
		return
	}
	c.entries[key] = domain.LinkVerdict{
		URL:        key,
		IsPhishing: isPhishing,
		ObservedAt: observed,
	}
}

// Len returns the number of entries currently held, including any not
// yet lazily evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetNowFunc overrides the clock. Test hook.
func (c *Cache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
