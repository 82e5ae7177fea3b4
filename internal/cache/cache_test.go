package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	// Create a cache with a short TTL for testing
	ttl := 100 * time.Millisecond
	c := New[string, int](16, ttl)
	defer c.Close()

	// Test Set and Get
	t.Run("basic set and get", func(t *testing.T) {
		c.Set("test1", 123)
		value, exists := c.Get("test1")
		assert.True(t, exists)
		assert.Equal(t, 123, value)
	})

	// Test expiration
	t.Run("expiration", func(t *testing.T) {
		c.Set("test2", 456)
		time.Sleep(ttl + 50*time.Millisecond) // Wait for expiration
		_, exists := c.Get("test2")
		assert.False(t, exists)
	})

	// Test Delete
	t.Run("delete", func(t *testing.T) {
		c.Set("test3", 789)
		c.Delete("test3")
		_, exists := c.Get("test3")
		assert.False(t, exists)
	})

	// Test non-existent key
	t.Run("non-existent key", func(t *testing.T) {
		_, exists := c.Get("nonexistent")
		assert.False(t, exists)
	})

	// Test updating existing key
	t.Run("update existing key", func(t *testing.T) {
		c.Set("test4", 111)
		c.Set("test4", 222)
		value, exists := c.Get("test4")
		assert.True(t, exists)
		assert.Equal(t, 222, value)
	})

	// Test per-entry TTL override
	t.Run("per-entry ttl", func(t *testing.T) {
		c.SetTTL("short", 1, 20*time.Millisecond)
		c.SetTTL("long", 2, time.Minute)
		time.Sleep(50 * time.Millisecond)

		_, exists := c.Get("short")
		assert.False(t, exists)

		value, exists := c.Get("long")
		assert.True(t, exists)
		assert.Equal(t, 2, value)
	})

	// Test Clear
	t.Run("clear", func(t *testing.T) {
		c.Set("test5", 1)
		c.Clear()
		_, exists := c.Get("test5")
		assert.False(t, exists)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCacheLRUEviction(t *testing.T) {
	c := New[string, int](3, time.Minute)
	defer c.Close()

	for i := range 3 {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	// Touch key0 so key1 becomes the least recently used
	_, exists := c.Get("key0")
	assert.True(t, exists)

	c.Set("key3", 3)

	_, exists = c.Get("key1")
	assert.False(t, exists)

	_, exists = c.Get("key0")
	assert.True(t, exists)
	_, exists = c.Get("key3")
	assert.True(t, exists)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCacheStats(t *testing.T) {
	c := New[string, int](8, time.Minute)
	defer c.Close()

	c.Set("hit", 1)

	_, _ = c.Get("hit")
	_, _ = c.Get("hit")
	_, _ = c.Get("miss")

	c.SetTTL("stale", 2, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	_, _ = c.Get("stale")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Expired)
}
