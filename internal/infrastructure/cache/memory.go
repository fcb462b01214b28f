package cache

import (
	"context"
	"sync"
	"time"

	"github.com/recipetube/backend/internal/domain"
)

// Default namespace TTLs
const (
	DefaultVideoTTL  = time.Hour
	DefaultSearchTTL = 5 * time.Minute
)

// TTLs maps each namespace to the age after which its entries are stale
type TTLs map[domain.CacheNamespace]time.Duration

// DefaultTTLs returns the video (1h) and search (5m) TTLs
func DefaultTTLs() TTLs {
	return TTLs{
		domain.NamespaceVideo:  DefaultVideoTTL,
		domain.NamespaceSearch: DefaultSearchTTL,
	}
}

// cacheItem represents a single item in the cache with the time it was stored
type cacheItem struct {
	Value    []byte
	StoredAt time.Time
}

// MemoryCache is a thread-safe in-memory cache with a TTL per namespace.
// Entries are removed on read once stale, by PurgeExpired, or by Clear.
type MemoryCache struct {
	data  map[domain.CacheNamespace]map[string]cacheItem
	ttls  TTLs
	now   func() time.Time
	mutex sync.Mutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(ttls TTLs) *MemoryCache {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &MemoryCache{
		data: make(map[domain.CacheNamespace]map[string]cacheItem),
		ttls: ttls,
		now:  time.Now,
	}
}

// SetClock replaces the time source (tests)
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = now
}

// TTL returns the TTL of a namespace
func (c *MemoryCache) TTL(ns domain.CacheNamespace) time.Duration {
	return c.ttls[ns]
}

func (c *MemoryCache) expired(ns domain.CacheNamespace, item cacheItem, now time.Time) bool {
	return now.Sub(item.StoredAt) > c.ttls[ns]
}

// Get retrieves a value from the cache, evicting it if it has expired
func (c *MemoryCache) Get(ctx context.Context, ns domain.CacheNamespace, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	bucket := c.data[ns]
	item, exists := bucket[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	if c.expired(ns, item, c.now()) {
		delete(bucket, key)
		return nil, domain.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a value, overwriting any prior entry for the key
func (c *MemoryCache) Set(ctx context.Context, ns domain.CacheNamespace, key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	bucket, ok := c.data[ns]
	if !ok {
		bucket = make(map[string]cacheItem)
		c.data[ns] = bucket
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	bucket[key] = cacheItem{Value: stored, StoredAt: c.now()}
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, ns domain.CacheNamespace, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data[ns], key)
	return nil
}

// Clear removes all entries in a namespace
func (c *MemoryCache) Clear(ctx context.Context, ns domain.CacheNamespace) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, ns)
	return nil
}

// PurgeExpired removes every stale entry and returns how many were dropped
func (c *MemoryCache) PurgeExpired(ctx context.Context) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	removed := 0
	for ns, bucket := range c.data {
		for key, item := range bucket {
			if c.expired(ns, item, now) {
				delete(bucket, key)
				removed++
			}
		}
	}
	return removed, nil
}

// Size returns the number of entries held in a namespace, stale or not
func (c *MemoryCache) Size(ns domain.CacheNamespace) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.data[ns])
}
