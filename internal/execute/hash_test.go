package execute

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("task-1", "example.com", "https://example.com/p", "Page", "q=go")
	b := CacheKey("task-1", "example.com", "https://example.com/p", "Page", "q=go")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestCacheKeyFieldSensitive(t *testing.T) {
	base := CacheKey("task-1", "example.com", "https://example.com/p", "Page", "q=go")

	variants := []string{
		CacheKey("task-2", "example.com", "https://example.com/p", "Page", "q=go"),
		CacheKey("task-1", "example.org", "https://example.com/p", "Page", "q=go"),
		CacheKey("task-1", "example.com", "https://example.com/q", "Page", "q=go"),
		CacheKey("task-1", "example.com", "https://example.com/p", "Other", "q=go"),
		CacheKey("task-1", "example.com", "https://example.com/p", "Page", "q=rust"),
	}
	for _, v := range variants {
		assert.NotEqual(t, base, v)
	}
}

func TestCacheKeyBase36Alphabet(t *testing.T) {
	key := CacheKey("task-1", "пример.рф", "https://пример.рф/страница", "Тест 🎯", "")
	assert.NotEmpty(t, key)
	for _, r := range key {
		assert.Contains(t, "0123456789abcdefghijklmnopqrstuvwxyz", string(r))
	}
}

func TestCacheKeyEmptyInputs(t *testing.T) {
	key := CacheKey("", "", "", "", "")
	assert.NotEmpty(t, key)
	// Only the delimiters are hashed, so the key is still stable.
	assert.Equal(t, key, CacheKey("", "", "", "", ""))
	assert.False(t, strings.HasPrefix(key, "-"))
}
