// Package embedding caches text embeddings in front of a provider.
package embedding

import (
	"container/list"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	key     string
	vector  []float32
	expires time.Time
}

// MemoryCache is a process-local LRU of embeddings with a fixed TTL.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List // front is most recently used
	items    map[string]*list.Element
}

// NewMemoryCache returns an LRU holding at most capacity entries for ttl.
// A nil now uses time.Now.
func NewMemoryCache(capacity int, ttl time.Duration, now func() time.Time) *MemoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the vector for key if present and not expired.
func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if !c.now().Before(e.expires) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return slices.Clone(e.vector), true
}

// Set stores a copy of vector under key, evicting the least recently used entry
// when full.
func (c *MemoryCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vector = slices.Clone(vector)
	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.vector = vector
		e.expires = expires
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&memoryEntry{key: key, vector: vector, expires: expires})
	for c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CleanupExpired drops expired entries and returns how many were removed.
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*memoryEntry).expires) {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *MemoryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*memoryEntry).key)
}
