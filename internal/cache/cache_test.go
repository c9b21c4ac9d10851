package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(maxBytes int64) *BoundedCache {
	return New(Config{
		MaxSizeBytes: maxBytes,
		DefaultTTL:   time.Minute,
		CleanupEvery: 0, // no janitor in tests
	})
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	type result struct {
		Content string `json:"content"`
		Score   int    `json:"score"`
	}

	ok := c.Set("k1", result{Content: "hello", Score: 3}, 0)
	require.True(t, ok)

	var got result
	require.True(t, c.Get("k1", &got))
	assert.Equal(t, result{Content: "hello", Score: 3}, got)
}

func TestCache_MissOnAbsentKey(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	var got string
	assert.False(t, c.Get("nope", &got))

	stats := c.Stats()
	assert.EqualValues(t, 0, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Zero(t, stats.HitRate)
}

func TestCache_SerializationFailureReturnsFalse(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	// Channels cannot be JSON-marshalled.
	assert.False(t, c.Set("bad", make(chan int), 0))
	assert.Equal(t, 0, c.Len())
}

func TestCache_ExpiredEntryIsMissAndPurged(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("short", "value", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.False(t, c.Get("short", &got))
	assert.Equal(t, 0, c.Len())

	stats := c.Stats()
	assert.EqualValues(t, 0, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Expired)
}

func TestCache_LRUEvictionOldestFirst(t *testing.T) {
	// Each entry is a quoted 16-char string, 18 bytes of JSON. Budget fits
	// three entries but not four.
	c := newTestCache(60)
	defer func() { _ = c.Close() }()

	payload := strings.Repeat("x", 16)
	for i := 1; i <= 3; i++ {
		require.True(t, c.Set(fmt.Sprintf("k%d", i), payload, 0))
	}

	// Touch k1 so k2 becomes the least recently used.
	var got string
	require.True(t, c.Get("k1", &got))

	require.True(t, c.Set("k4", payload, 0))

	assert.False(t, c.Get("k2", &got), "least recently used entry should be evicted")
	assert.True(t, c.Get("k1", &got))
	assert.True(t, c.Get("k3", &got))
	assert.True(t, c.Get("k4", &got), "most recently inserted entry must be retrievable")

	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestCache_EvictsEntireChainForLargeEntry(t *testing.T) {
	c := newTestCache(60)
	defer func() { _ = c.Close() }()

	small := strings.Repeat("x", 16)
	for i := 1; i <= 3; i++ {
		require.True(t, c.Set(fmt.Sprintf("k%d", i), small, 0))
	}

	// A 50-byte payload forces out every predecessor.
	big := strings.Repeat("y", 48)
	require.True(t, c.Set("big", big, 0))

	var got string
	assert.True(t, c.Get("big", &got))
	assert.False(t, c.Get("k1", &got))
	assert.False(t, c.Get("k2", &got))
	assert.Equal(t, 1, c.Len())
}

func TestCache_OversizedEntryStillRetrievable(t *testing.T) {
	c := newTestCache(10)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("huge", strings.Repeat("z", 100), 0))

	var got string
	assert.True(t, c.Get("huge", &got))
}

func TestCache_OverwriteReplacesTrackedSize(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("k", strings.Repeat("a", 100), 0))
	require.True(t, c.Set("k", "b", 0))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.EqualValues(t, len(`"b"`), stats.SizeBytes)
}

func TestCache_InvalidateByPattern(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("task-1:example.com:a", 1, 0))
	require.True(t, c.Set("task-1:example.com:b", 2, 0))
	require.True(t, c.Set("task-2:github.com:a", 3, 0))

	removed := c.InvalidateByPattern("example.com")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	assert.Zero(t, c.InvalidateByPattern("example.com"))
}

func TestCache_Preload(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	loaded := c.Preload([]PreloadItem{
		{Key: "a", Value: "one"},
		{Key: "b", Value: "two", TTL: time.Hour},
		{Key: "c", Value: make(chan int)}, // unserializable
	})
	assert.Equal(t, 2, loaded)

	var got string
	assert.True(t, c.Get("a", &got))
	assert.Equal(t, "one", got)
}

func TestCache_HitRate(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("k", "v", 0))

	var got string
	c.Get("k", &got)    // hit
	c.Get("k", &got)    // hit
	c.Get("gone", &got) // miss

	stats := c.Stats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestCache_CleanupSweepsExpired(t *testing.T) {
	c := newTestCache(1024)
	defer func() { _ = c.Close() }()

	require.True(t, c.Set("stale", "v", time.Nanosecond))
	require.True(t, c.Set("fresh", "v", time.Hour))
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, c.Cleanup())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ClosedCacheRefusesOperations(t *testing.T) {
	c := newTestCache(1024)
	require.NoError(t, c.Close())

	assert.False(t, c.Set("k", "v", 0))
	var got string
	assert.False(t, c.Get("k", &got))
	assert.NoError(t, c.Close())
}
