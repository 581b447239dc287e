package zpt

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SelectionCache is a TTL-bounded cache keyed by parameter Fingerprint,
// grounded on the same golang-lru/v2 pattern used by store.CachedStore
// and embedding.Cache.
type SelectionCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
}

type cacheEntry struct {
	result    SelectionResult
	expiresAt time.Time
}

// NewSelectionCache builds a SelectionCache holding up to size entries,
// each valid for ttl.
func NewSelectionCache(size int, ttl time.Duration) *SelectionCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, cacheEntry](size)
	return &SelectionCache{cache: c, ttl: ttl}
}

// Get returns the cached SelectionResult for fingerprint if present and
// unexpired.
func (c *SelectionCache) Get(fingerprint string) (SelectionResult, bool) {
	if c == nil || c.cache == nil {
		return SelectionResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(fingerprint)
	if !ok {
		return SelectionResult{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.cache.Remove(fingerprint)
		return SelectionResult{}, false
	}
	return entry.result, true
}

// Put stores result under fingerprint with the cache's configured TTL.
func (c *SelectionCache) Put(fingerprint string, result SelectionResult) {
	if c == nil || c.cache == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(fingerprint, cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)})
}
