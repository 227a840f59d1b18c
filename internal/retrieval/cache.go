package retrieval

import (
	"sync"
	"time"
)

// resultCache is a thread-safe TTL cache of retrieval results keyed by query.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	chunks  []Chunk
	savedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves cached chunks for a query if present and not expired.
// Returns a copy to prevent external modification.
func (c *resultCache) Get(query string) ([]Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[query]
	if !ok {
		return nil, false
	}

	if time.Since(entry.savedAt) > c.ttl {
		return nil, false
	}

	chunks := make([]Chunk, len(entry.chunks))
	copy(chunks, entry.chunks)
	return chunks, true
}

// Set stores chunks for a query, replacing any previous entry. Expired
// entries are swept opportunistically to bound memory.
func (c *resultCache) Set(query string, chunks []Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if time.Since(entry.savedAt) > c.ttl {
			delete(c.entries, key)
		}
	}

	stored := make([]Chunk, len(chunks))
	copy(stored, chunks)
	c.entries[query] = cacheEntry{chunks: stored, savedAt: time.Now()}
}

// Size returns the number of cached queries, expired entries included.
func (c *resultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
