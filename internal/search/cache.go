package search

import "sync"

// resultCache memoizes ranked search results, bounded to a fixed number of
// entries. Insertion order is tracked so the oldest entry is evicted when
// the cache overflows.
type resultCache struct {
	mu      sync.Mutex
	entries map[string][]Match
	order   []string
	size    int
}

func newResultCache(size int) *resultCache {
	return &resultCache{
		entries: make(map[string][]Match, size),
		order:   make([]string, 0, size),
		size:    size,
	}
}

func (c *resultCache) get(key string) ([]Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	return res, ok
}

func (c *resultCache) put(key string, res []Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.size {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = res
}

func (c *resultCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]Match, c.size)
	c.order = c.order[:0]
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
