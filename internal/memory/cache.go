package memory

import (
	"container/list"
	"sync"
)

// DefaultCacheCapacity bounds the number of hydrated contexts held in
// process.
const DefaultCacheCapacity = 100

// contextCache is a fixed-capacity map of hydrated contexts with explicit
// insertion-order eviction (FIFO). Eviction drops the in-process copy only;
// the durable document stays behind the adapter and rehydrates on next
// access.
type contextCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest inserted
}

type cacheEntry struct {
	key string
	ctx *MemoryContext
}

func newContextCache(capacity int) *contextCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &contextCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *contextCache) get(key string) (*MemoryContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).ctx, true
}

// put inserts or replaces an entry and returns the key evicted to make room,
// if any. A replaced key keeps its original insertion position.
func (c *contextCache) put(key string, ctx *MemoryContext) (evicted string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.entries[key]; exists {
		el.Value.(*cacheEntry).ctx = ctx
		return "", false
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			entry := oldest.Value.(*cacheEntry)
			c.order.Remove(oldest)
			delete(c.entries, entry.key)
			evicted, ok = entry.key, true
		}
	}

	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, ctx: ctx})
	return evicted, ok
}

func (c *contextCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

func (c *contextCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
