package cache

import (
	"context"
	"strings"
	"time"

	"github.com/finbase/subcore/internal/config"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is the fallback TTL for entries stored without one.
const DefaultExpiration = 30 * time.Minute

// DefaultCleanupInterval is how often expired entries are purged.
const DefaultCleanupInterval = 1 * time.Hour

// InMemoryCache backs the Cache interface with patrickmn/go-cache. All
// operations turn into no-ops when caching is disabled in configuration.
type InMemoryCache struct {
	cache *goCache.Cache
	cfg   *config.Configuration
}

var globalCache *InMemoryCache

// InitializeInMemoryCache sets up the process-wide cache instance. A nil cfg
// falls back to the default configuration.
func InitializeInMemoryCache(cfg *config.Configuration) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}

	if globalCache == nil {
		globalCache = &InMemoryCache{
			cache: goCache.New(DefaultExpiration, DefaultCleanupInterval),
			cfg:   cfg,
		}
	}
}

// NewInMemoryCache returns the process-wide cache as a Cache.
func NewInMemoryCache() Cache {
	if globalCache == nil {
		InitializeInMemoryCache(nil)
	}
	return globalCache
}

// GetInMemoryCache returns the process-wide cache instance.
func GetInMemoryCache() *InMemoryCache {
	if globalCache == nil {
		InitializeInMemoryCache(nil)
	}
	return globalCache
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.cfg.Cache.Enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.cfg.Cache.Enabled {
		return
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.cfg.Cache.Enabled {
		return
	}
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	if !c.cfg.Cache.Enabled {
		return
	}
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	if !c.cfg.Cache.Enabled {
		return
	}
	c.cache.Flush()
}
