package lookup

import (
	"sync"
	"time"

	"github.com/vmunix/pulsarr/internal/router"
)

type cacheEntry struct {
	result  *router.LookupResult
	expires time.Time
}

type cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *cache) get(key string) (*router.LookupResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.result, true
}

func (c *cache) set(key string, result *router.LookupResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		result:  result,
		expires: time.Now().Add(c.ttl),
	}
}
