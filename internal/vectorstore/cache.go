package vectorstore

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of resident collection handles.
const DefaultCacheSize = 128

// Handle is what a backend remembers about a collection between calls: its
// embedding dimension and chunk count. It can always be recomputed from the
// durable store.
type Handle struct {
	Dim    int
	Chunks int
}

// Cache is a bounded LRU of collection handles. Evicting an entry only costs
// a lookup against the backend on the next access.
type Cache struct {
	lru *lru.Cache[string, Handle]
	max int

	hits, misses, evictions atomic.Uint64
}

// NewCache returns a cache holding at most max handles (DefaultCacheSize if max <= 0).
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	// only fails for a non-positive size
	l, _ := lru.New[string, Handle](max)
	return &Cache{lru: l, max: max}
}

func (c *Cache) Get(name string) (Handle, bool) {
	h, ok := c.lru.Get(name)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return h, ok
}

func (c *Cache) Put(name string, h Handle) {
	if c.lru.Add(name, h) {
		c.evictions.Add(1)
	}
}

// Invalidate forgets name. Replace and delete call it.
func (c *Cache) Invalidate(name string) { c.lru.Remove(name) }

func (c *Cache) Len() int { return c.lru.Len() }

// CacheStats is a point-in-time copy of the cache counters.
type CacheStats struct {
	Size      int    `json:"size"`
	Max       int    `json:"max"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Size:      c.lru.Len(),
		Max:       c.max,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
