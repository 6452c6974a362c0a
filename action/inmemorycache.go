package action

import (
	"sync"
	"time"
)

// InMemoryCache holds one case's definitions in evaluation order plus a name
// index. Entries are deep copies, so callers may edit what they get back
// without touching the cache.
type InMemoryCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	loadedAt time.Time
	loaded   bool
	order    []*Definition
	byName   map[string]*Definition
}

func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{ttl: config.TTL}
}

// Get returns the cached definitions in order, nil on a miss
func (c *InMemoryCache) Get() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.current() {
		return nil
	}
	out := make([]*Definition, len(c.order))
	for i, def := range c.order {
		out[i] = def.Clone()
	}
	return out
}

// Lookup returns the cached definition called name. ok is false on a miss or
// when the cache holds no such action.
func (c *InMemoryCache) Lookup(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.current() {
		return nil, false
	}
	def, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

func (c *InMemoryCache) Set(defs []*Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = make([]*Definition, len(defs))
	c.byName = make(map[string]*Definition, len(defs))
	for i, def := range defs {
		cp := def.Clone()
		c.order[i] = cp
		c.byName[cp.Name] = cp
	}
	c.loadedAt = time.Now()
	c.loaded = true
}

func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = false
	c.order = nil
	c.byName = nil
}

func (c *InMemoryCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current()
}

func (c *InMemoryCache) current() bool {
	return c.loaded && (c.ttl <= 0 || time.Since(c.loadedAt) <= c.ttl)
}
