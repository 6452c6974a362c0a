package action

import "time"

// DefinitionsCache caches the ordered definition list of one store
// This allows swapping between in-memory or other caching implementations
type DefinitionsCache interface {
	// Get retrieves cached definitions, returns nil on a miss or after expiry
	Get() []*Definition

	// Lookup retrieves one cached definition by action name
	Lookup(name string) (*Definition, bool)

	// Set stores definitions in cache
	Set(defs []*Definition)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig only invalidates on mutations
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// CachedStore wraps a Store and serves List and Get from a cache that every
// mutation invalidates
type CachedStore struct {
	Store
	cache DefinitionsCache
}

func NewCachedStore(store Store, cache DefinitionsCache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

func (s *CachedStore) List() ([]*Definition, error) {
	if defs := s.cache.Get(); defs != nil {
		return defs, nil
	}
	defs, err := s.Store.List()
	if err != nil {
		return nil, err
	}
	s.cache.Set(defs)
	return defs, nil
}

func (s *CachedStore) Get(name string) (*Definition, error) {
	if def, ok := s.cache.Lookup(name); ok {
		return def, nil
	}
	return s.Store.Get(name)
}

func (s *CachedStore) Add(def *Definition) error {
	defer s.cache.Invalidate()
	return s.Store.Add(def)
}

func (s *CachedStore) Update(def *Definition) error {
	defer s.cache.Invalidate()
	return s.Store.Update(def)
}

func (s *CachedStore) Delete(name string) error {
	defer s.cache.Invalidate()
	return s.Store.Delete(name)
}
