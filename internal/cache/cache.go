// Package cache provides a bounded in-memory cache with per-entry TTLs.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats holds the access and removal counters for a cache.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// Cache is a thread-safe map with expiring entries and a maximum size.
// When full, the least recently used entry is evicted.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	stats   Stats
	stop    chan struct{}
}

// New creates a Cache with the given capacity and default TTL and starts
// its background sweep.
func New[K comparable, V any](maxSize int, ttl time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items:   make(map[K]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go c.sweep()

	return c
}

// Get retrieves a value from the cache.
// Returns the value and whether it exists/is valid.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.stats.Misses++

		var zero V

		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if time.Now().After(ent.expires) {
		c.removeElement(elem)
		c.stats.Expired++
		c.stats.Misses++

		var zero V

		return zero, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++

	return ent.value, true
}

// Set adds or updates a value using the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL adds or updates a value with an explicit TTL.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Now().Add(ttl)

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(elem)

		return
	}

	if c.maxSize > 0 && c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{
		key:     key,
		value:   value,
		expires: expires,
	})
}

// Delete removes a key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including not yet swept
// expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Stats returns a snapshot of the hit and miss counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Close stops the background sweep.
func (c *Cache[K, V]) Close() {
	close(c.stop)
}

func (c *Cache[K, V]) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry[K, V])
	c.order.Remove(elem)
	delete(c.items, ent.key)
}

// sweep periodically removes expired entries.
func (c *Cache[K, V]) sweep() {
	interval := c.ttl
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()

			now := time.Now()
			for elem := c.order.Back(); elem != nil; {
				prev := elem.Prev()
				if now.After(elem.Value.(*entry[K, V]).expires) {
					c.removeElement(elem)
					c.stats.Expired++
				}

				elem = prev
			}

			c.mu.Unlock()
		}
	}
}
