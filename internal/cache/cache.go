package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is the lookaside store the cached repository decorator writes
// through. Implementations may drop entries at any time; callers treat every
// miss as a normal read from the backing repository.
type Cache interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key. A zero expiration keeps the entry until
	// eviction.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes every key sharing the given prefix.
	DeleteByPrefix(ctx context.Context, prefix string)

	// Flush empties the cache.
	Flush(ctx context.Context)
}

// Key prefixes per entity type. The version segment lets a format change
// invalidate old entries by bumping the prefix.
const (
	PrefixSubscription = "subscription:v1:"
	PrefixUsage        = "usage:v1:"
	PrefixHistory      = "history:v1:"
	PrefixTier         = "tier:v1:"
)

// GenerateKey joins the prefix and params colon-separated into a cache key.
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = prefix

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
