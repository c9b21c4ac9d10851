// Package cache provides a size-bounded, TTL-aware, LRU-evicting cache
// keyed by opaque strings. It backs both AI-response caching and
// execution-result caching.
package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry represents a cached item with its bookkeeping metadata. Entries
// are owned exclusively by the cache: created on write, removed on
// expiry, eviction or explicit clear.
type Entry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Size      int64           `json:"size"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	HitCount  int64           `json:"hit_count"`

	// access orders entries for LRU eviction; lower is older.
	access uint64
}

// Config defines cache limits.
type Config struct {
	MaxSizeBytes int64         `json:"max_size_bytes"`
	DefaultTTL   time.Duration `json:"default_ttl"`
	// CleanupEvery is how often the janitor sweeps expired entries.
	// Zero disables the janitor; expired entries are still purged
	// lazily on access.
	CleanupEvery time.Duration `json:"cleanup_every"`
}

// DefaultConfig returns default cache limits.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes: 10 * 1024 * 1024,
		DefaultTTL:   30 * time.Minute,
		CleanupEvery: 5 * time.Minute,
	}
}

// Stats reports cache performance counters over the cache's lifetime.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	SizeBytes int64   `json:"size_bytes"`
	Items     int     `json:"items"`
	HitRate   float64 `json:"hit_rate"`
}

// BoundedCache is a thread-safe cache bounded by total payload bytes.
// When a write would push the tracked size over the limit, entries are
// evicted in least-recently-used order until the addition fits.
type BoundedCache struct {
	mu      sync.Mutex
	store   map[string]*Entry
	size    int64
	clock   uint64
	config  Config
	stats   Stats
	janitor *janitor
	closed  bool
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

// New creates a bounded cache and starts its cleanup janitor.
func New(config Config) *BoundedCache {
	if config.MaxSizeBytes <= 0 {
		config.MaxSizeBytes = DefaultConfig().MaxSizeBytes
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	c := &BoundedCache{
		store:  make(map[string]*Entry),
		config: config,
	}

	if config.CleanupEvery > 0 {
		c.janitor = &janitor{
			interval: config.CleanupEvery,
			stop:     make(chan struct{}),
		}
		go c.runJanitor()
	}
	return c
}

// Set serializes value and stores it under key with the given TTL
// (the configured default when ttl is zero). It returns false, never an
// error, when serialization fails or the cache is closed.
func (c *BoundedCache) Set(key string, value interface{}, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	now := time.Now()
	entry := &Entry{
		Key:       key,
		Payload:   payload,
		Size:      int64(len(payload)),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.insert(entry)
	c.stats.Sets++
	return true
}

// insert places an entry in the store, evicting LRU entries until the
// addition fits. The caller must hold the lock.
func (c *BoundedCache) insert(entry *Entry) {
	if old, ok := c.store[entry.Key]; ok {
		c.size -= old.Size
		delete(c.store, entry.Key)
	}

	// Evict oldest-access-first until the new entry fits. An entry larger
	// than the whole budget empties the cache and is stored anyway, so the
	// most recent write is always retrievable.
	for c.size+entry.Size > c.config.MaxSizeBytes && len(c.store) > 0 {
		c.evictOldest()
	}

	c.clock++
	entry.access = c.clock
	c.store[entry.Key] = entry
	c.size += entry.Size
}

// evictOldest removes the entry with the lowest access order. The caller
// must hold the lock.
func (c *BoundedCache) evictOldest() {
	var oldest *Entry
	for _, e := range c.store {
		if oldest == nil || e.access < oldest.access {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.store, oldest.Key)
	c.size -= oldest.Size
	c.stats.Evictions++
}

// Get deserializes the entry under key into dest and reports whether it
// was found. Expired entries are purged lazily and count as misses.
func (c *BoundedCache) Get(key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	entry, ok := c.store[key]
	if !ok {
		c.stats.Misses++
		return false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(c.store, key)
		c.size -= entry.Size
		c.stats.Expired++
		c.stats.Misses++
		return false
	}

	if dest != nil {
		if err := json.Unmarshal(entry.Payload, dest); err != nil {
			// A payload we wrote but cannot read back is treated as a miss.
			delete(c.store, key)
			c.size -= entry.Size
			c.stats.Misses++
			return false
		}
	}

	entry.HitCount++
	c.clock++
	entry.access = c.clock
	c.stats.Hits++
	return true
}

// Delete removes the entry under key, reporting whether it existed.
func (c *BoundedCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store[key]
	if !ok {
		return false
	}
	delete(c.store, key)
	c.size -= entry.Size
	return true
}

// InvalidateByPattern removes every entry whose key contains substring,
// returning how many were removed.
func (c *BoundedCache) InvalidateByPattern(substring string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.store {
		if strings.Contains(key, substring) {
			delete(c.store, key)
			c.size -= entry.Size
			removed++
		}
	}
	return removed
}

// PreloadItem is one pre-built entry for bulk insertion.
type PreloadItem struct {
	Key   string        `json:"key"`
	Value interface{}   `json:"value"`
	TTL   time.Duration `json:"ttl,omitempty"`
}

// Preload bulk-inserts pre-built entries, returning how many succeeded.
func (c *BoundedCache) Preload(items []PreloadItem) int {
	loaded := 0
	for _, item := range items {
		if c.Set(item.Key, item.Value, item.TTL) {
			loaded++
		}
	}
	return loaded
}

// Clear removes all entries.
func (c *BoundedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*Entry)
	c.size = 0
}

// Cleanup removes expired entries and returns how many were purged.
func (c *BoundedCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	now := time.Now()
	removed := 0
	for key, entry := range c.store {
		if now.After(entry.ExpiresAt) {
			delete(c.store, key)
			c.size -= entry.Size
			removed++
		}
	}
	c.stats.Expired += int64(removed)
	return removed
}

// Len returns the number of live entries.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Stats returns a snapshot of the cache counters. The hit rate is
// hits / (hits + misses), zero when nothing has been accessed yet.
func (c *BoundedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.SizeBytes = c.size
	stats.Items = len(c.store)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close stops the janitor and drops all entries.
func (c *BoundedCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.janitor != nil {
		close(c.janitor.stop)
	}
	c.store = nil
	c.size = 0
	return nil
}

func (c *BoundedCache) runJanitor() {
	ticker := time.NewTicker(c.janitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.janitor.stop:
			return
		}
	}
}
