package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/finbase/subcore/internal/cache"
	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/testutil"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type GatewaySuite struct {
	testutil.BaseServiceTestSuite
}

func TestGateway(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

// fastRetryPolicy keeps backoff delays negligible in tests.
func fastRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func (s *GatewaySuite) seedSubscription() *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:        "user_1",
		TierID:        types.SubscriptionTierPro,
		Status:        types.SubscriptionStatusActive,
		BillingCycle:  types.BillingCycleMonthly,
		Currency:      "usd",
		MonthlyPrice:  decimal.NewFromFloat(29.99),
		BillingAmount: decimal.NewFromFloat(29.99),
		StartDate:     s.GetNow(),
		AutoRenewal:   true,
		Version:       1,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

// conflictingSubscriptionRepo injects version conflicts on the first
// `conflicts` updates before delegating to the real store.
type conflictingSubscriptionRepo struct {
	subscription.Repository
	conflicts int
	updates   int
}

func (r *conflictingSubscriptionRepo) Update(ctx context.Context, sub *subscription.Subscription) error {
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Reload the subscription and retry the change").
			Mark(ierr.ErrVersionConflict)
	}
	return r.Repository.Update(ctx, sub)
}

// countingSubscriptionRepo counts reads passed through to the inner store.
type countingSubscriptionRepo struct {
	subscription.Repository
	gets int
}

func (r *countingSubscriptionRepo) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	r.gets++
	return r.Repository.Get(ctx, id)
}

// flakySubscriptionRepo fails reads with a store error while failing is set.
type flakySubscriptionRepo struct {
	subscription.Repository
	failing bool
	gets    int
}

func (r *flakySubscriptionRepo) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	r.gets++
	if r.failing {
		return nil, ierr.NewError("subscription store unreachable").
			WithHint("The subscription store did not respond").
			Mark(ierr.ErrDatabase)
	}
	return r.Repository.Get(ctx, id)
}

func (s *GatewaySuite) TestUpdateWithRetryRecoversFromConflicts() {
	sub := s.seedSubscription()
	repo := &conflictingSubscriptionRepo{
		Repository: s.GetStores().SubscriptionRepo,
		conflicts:  2,
	}

	mutations := 0
	updated, err := UpdateWithRetry(s.GetContext(), repo, fastRetryPolicy(3), s.GetLogger(), sub.ID,
		func(current *subscription.Subscription) error {
			mutations++
			current.FailedBillingAttempts++
			return nil
		})
	s.NoError(err)
	s.Equal(3, repo.updates)
	s.Equal(3, mutations)

	// Every attempt mutated a fresh snapshot, so the increment landed once.
	s.Equal(1, updated.FailedBillingAttempts)
	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(1, stored.FailedBillingAttempts)
	s.Equal(int64(2), stored.Version)
}

func (s *GatewaySuite) TestUpdateWithRetryExhaustsAttempts() {
	sub := s.seedSubscription()
	repo := &conflictingSubscriptionRepo{
		Repository: s.GetStores().SubscriptionRepo,
		conflicts:  10,
	}

	_, err := UpdateWithRetry(s.GetContext(), repo, fastRetryPolicy(3), s.GetLogger(), sub.ID,
		func(current *subscription.Subscription) error {
			current.FailedBillingAttempts++
			return nil
		})
	s.Error(err)
	s.True(ierr.IsVersionConflict(err))
	s.Equal(3, repo.updates)

	// The aggregate never changed.
	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(0, stored.FailedBillingAttempts)
	s.Equal(int64(1), stored.Version)
}

func (s *GatewaySuite) TestUpdateWithRetryStopsOnPermanentFailure() {
	// A missing aggregate is not retried.
	repo := &conflictingSubscriptionRepo{Repository: s.GetStores().SubscriptionRepo}
	_, err := UpdateWithRetry(s.GetContext(), repo, fastRetryPolicy(3), s.GetLogger(), "subs_missing",
		func(current *subscription.Subscription) error { return nil })
	s.Error(err)
	s.True(ierr.IsNotFound(err))
	s.Equal(0, repo.updates)

	// Neither is a mutator rejection.
	sub := s.seedSubscription()
	mutations := 0
	_, err = UpdateWithRetry(s.GetContext(), repo, fastRetryPolicy(3), s.GetLogger(), sub.ID,
		func(current *subscription.Subscription) error {
			mutations++
			return ierr.NewError("refusing the change").Mark(ierr.ErrInvalidOperation)
		})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Equal(1, mutations)
}

func (s *GatewaySuite) TestBreakerOpensOnStoreFailures() {
	inner := &flakySubscriptionRepo{
		Repository: s.GetStores().SubscriptionRepo,
		failing:    true,
	}
	repo := NewBreakerRepository(inner, BreakerPolicy{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 2,
	}, s.GetLogger())

	// The first two failures pass through to the store.
	_, err := repo.Get(s.GetContext(), "subs_any")
	s.True(ierr.IsDatabase(err))
	_, err = repo.Get(s.GetContext(), "subs_any")
	s.True(ierr.IsDatabase(err))
	s.Equal(2, inner.gets)

	// The third call is rejected by the open breaker without touching it.
	_, err = repo.Get(s.GetContext(), "subs_any")
	s.Error(err)
	s.True(ierr.IsDatabase(err))
	s.Equal(2, inner.gets)
}

func (s *GatewaySuite) TestBreakerIgnoresDomainFailures() {
	inner := &countingSubscriptionRepo{Repository: s.GetStores().SubscriptionRepo}
	repo := NewBreakerRepository(inner, BreakerPolicy{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 2,
	}, s.GetLogger())

	// Not-found answers never trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := repo.Get(s.GetContext(), "subs_missing")
		s.True(ierr.IsNotFound(err))
	}
	s.Equal(5, inner.gets)
}

func (s *GatewaySuite) TestBreakerRecoversAfterTimeout() {
	inner := &flakySubscriptionRepo{
		Repository: s.GetStores().SubscriptionRepo,
		failing:    true,
	}
	repo := NewBreakerRepository(inner, BreakerPolicy{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Second,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 2,
	}, s.GetLogger())

	_, _ = repo.Get(s.GetContext(), "subs_any")
	_, _ = repo.Get(s.GetContext(), "subs_any")

	// Open; the store heals while the breaker waits out its timeout.
	inner.failing = false
	sub := s.seedSubscription()
	time.Sleep(80 * time.Millisecond)

	got, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(sub.ID, got.ID)
}

func (s *GatewaySuite) TestCachedRepositoryReadThrough() {
	c := cache.GetInMemoryCache()
	c.Flush(s.GetContext())

	sub := s.seedSubscription()
	inner := &countingSubscriptionRepo{Repository: s.GetStores().SubscriptionRepo}
	repo := NewCachedRepository(inner, c, time.Minute, s.GetLogger())

	// First read misses and primes; the second is served from the cache.
	first, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(1, inner.gets)
	second, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(1, inner.gets)
	s.Equal(first.ID, second.ID)

	// Cached reads hand out copies; mutating one never leaks into the next.
	second.FailedBillingAttempts = 99
	third, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(0, third.FailedBillingAttempts)

	// An update invalidates the entry and the next read sees the new state.
	third.AutoRenewal = false
	s.NoError(repo.Update(s.GetContext(), third))
	fourth, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(2, inner.gets)
	s.False(fourth.AutoRenewal)
}

func (s *GatewaySuite) TestCachedRepositoryDeleteInvalidates() {
	c := cache.GetInMemoryCache()
	c.Flush(s.GetContext())

	sub := s.seedSubscription()
	repo := NewCachedRepository(s.GetStores().SubscriptionRepo, c, time.Minute, s.GetLogger())

	_, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)

	s.NoError(repo.Delete(s.GetContext(), sub.ID))
	_, err = repo.Get(s.GetContext(), sub.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *GatewaySuite) TestWrapComposesFromConfig() {
	c := cache.GetInMemoryCache()
	c.Flush(s.GetContext())

	inner := &countingSubscriptionRepo{Repository: s.GetStores().SubscriptionRepo}
	repo := Wrap(inner, s.GetConfig(), c, s.GetLogger())

	sub := s.seedSubscription()
	_, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	_, err = repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(1, inner.gets)

	// Writes flow through every layer down to the store.
	got, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	got.AutoRenewal = false
	s.NoError(repo.Update(s.GetContext(), got))

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.False(stored.AutoRenewal)
	s.Equal(int64(2), stored.Version)
}
