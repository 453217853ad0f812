// Package gateway holds the caller-side resilience decorators applied around
// subscription repository access: a read-through cache, a circuit breaker,
// and an optimistic-lock retry helper. The rules engine itself is pure and is
// never wrapped; embedders compose these around whatever store implementation
// they inject into the services.
package gateway

import (
	"github.com/finbase/subcore/internal/cache"
	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/logger"
)

// Wrap assembles the full stack from configuration: a read-through cache over
// a circuit breaker over the store. Disabled layers drop out individually.
func Wrap(repo subscription.Repository, cfg *config.Configuration, c cache.Cache, log *logger.Logger) subscription.Repository {
	wrapped := NewBreakerRepository(repo, BreakerPolicyFromConfig(cfg.Resilience.Breaker), log)
	if cfg.Cache.Enabled {
		wrapped = NewCachedRepository(wrapped, c, cfg.Cache.TTL, log)
	}
	return wrapped
}
