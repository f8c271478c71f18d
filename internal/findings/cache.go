package findings

import (
	gocache "github.com/patrickmn/go-cache"
)

// Cache maps finding keys to their latest snapshot for the duration of one run.
// It is safe for concurrent use. Call Clear when the run ends.
type Cache struct {
	store *gocache.Cache
}

// NewCache creates an empty run-scoped cache.
func NewCache() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, 0)}
}

// Put stores or replaces the snapshot of f.
func (c *Cache) Put(f Finding) {
	c.store.Set(f.Key, f, gocache.NoExpiration)
}

// PutAll stores every snapshot of the map.
func (c *Cache) PutAll(m map[string]Finding) {
	for _, f := range m {
		c.Put(f)
	}
}

// Get returns the cached snapshot for key.
func (c *Cache) Get(key string) (Finding, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return Finding{}, false
	}
	return v.(Finding), true
}

// Len returns the number of cached findings.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.store.Flush()
}
