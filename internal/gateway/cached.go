package gateway

import (
	"context"
	"time"

	"github.com/finbase/subcore/internal/cache"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/logger"
	"github.com/finbase/subcore/internal/types"
)

type cachedRepository struct {
	repo  subscription.Repository
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedRepository adds a read-through cache on Get. Entries are stored
// and served as copies so callers mutating an aggregate never write into the
// cache, and every mutation invalidates the entry instead of re-priming it.
func NewCachedRepository(repo subscription.Repository, c cache.Cache, ttl time.Duration, log *logger.Logger) subscription.Repository {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	return &cachedRepository{
		repo:  repo,
		cache: c,
		ttl:   ttl,
		log:   log,
	}
}

func (r *cachedRepository) cacheKey(ctx context.Context, id string) string {
	return cache.GenerateKey(cache.PrefixSubscription, types.GetTenantID(ctx), id)
}

func (r *cachedRepository) getCache(ctx context.Context, id string) *subscription.Subscription {
	key := r.cacheKey(ctx, id)
	if value, found := r.cache.Get(ctx, key); found {
		if sub, ok := value.(*subscription.Subscription); ok {
			r.log.Debugw("cache hit", "key", key)
			return sub.Copy()
		}
	}
	r.log.Debugw("cache miss", "key", key)
	return nil
}

func (r *cachedRepository) setCache(ctx context.Context, sub *subscription.Subscription) {
	key := r.cacheKey(ctx, sub.ID)
	r.cache.Set(ctx, key, sub.Copy(), r.ttl)
	r.log.Debugw("cache set", "key", key)
}

func (r *cachedRepository) deleteCache(ctx context.Context, id string) {
	key := r.cacheKey(ctx, id)
	r.cache.Delete(ctx, key)
	r.log.Debugw("cache deleted", "key", key)
}

func (r *cachedRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	return r.repo.Create(ctx, sub)
}

func (r *cachedRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	if sub := r.getCache(ctx, id); sub != nil {
		return sub, nil
	}

	sub, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.setCache(ctx, sub)
	return sub, nil
}

func (r *cachedRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return r.repo.GetByUserID(ctx, userID)
}

func (r *cachedRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}
	r.deleteCache(ctx, sub.ID)
	return nil
}

func (r *cachedRepository) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.deleteCache(ctx, id)
	return nil
}

func (r *cachedRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	return r.repo.List(ctx, filter)
}

func (r *cachedRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return r.repo.Count(ctx, filter)
}
