package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/logger"
	"github.com/finbase/subcore/internal/types"
	"github.com/sony/gobreaker/v2"
)

// BreakerPolicy configures the circuit breaker wrapped around a subscription
// repository.
type BreakerPolicy struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakerPolicyFromConfig builds a BreakerPolicy from configuration, falling
// back to defaults for unset values.
func BreakerPolicyFromConfig(cfg config.BreakerConfig) BreakerPolicy {
	policy := BreakerPolicy{
		Enabled:          cfg.Enabled,
		MaxRequests:      cfg.MaxRequests,
		Interval:         cfg.Interval,
		Timeout:          cfg.Timeout,
		FailureThreshold: cfg.FailureThreshold,
	}
	if policy.MaxRequests == 0 {
		policy.MaxRequests = 3
	}
	if policy.Interval == 0 {
		policy.Interval = 10 * time.Second
	}
	if policy.Timeout == 0 {
		policy.Timeout = 30 * time.Second
	}
	if policy.FailureThreshold == 0 {
		policy.FailureThreshold = 5
	}
	return policy
}

type breakerRepository struct {
	repo    subscription.Repository
	breaker *gobreaker.CircuitBreaker[any]
	log     *logger.Logger
}

// NewBreakerRepository wraps repository access in a circuit breaker. Only
// store failures count toward tripping it; domain answers like a not-found
// lookup or a version conflict pass through without touching the failure
// counter. A disabled policy returns the repository unwrapped.
func NewBreakerRepository(repo subscription.Repository, policy BreakerPolicy, log *logger.Logger) subscription.Repository {
	if !policy.Enabled {
		return repo
	}

	settings := gobreaker.Settings{
		Name:        "subscription-store",
		MaxRequests: policy.MaxRequests,
		Interval:    policy.Interval,
		Timeout:     policy.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !ierr.IsDatabase(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &breakerRepository{
		repo:    repo,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		log:     log,
	}
}

// execute routes a repository call through the breaker, translating an open
// breaker into a store-unavailable failure.
func (r *breakerRepository) execute(fn func() (any, error)) (any, error) {
	v, err := r.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ierr.WithError(err).
				WithHint("The subscription store is temporarily unavailable").
				Mark(ierr.ErrDatabase)
		}
		return nil, err
	}
	return v, nil
}

func (r *breakerRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.repo.Create(ctx, sub)
	})
	return err
}

func (r *breakerRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	v, err := r.execute(func() (any, error) {
		return r.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*subscription.Subscription), nil
}

func (r *breakerRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	v, err := r.execute(func() (any, error) {
		return r.repo.GetByUserID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*subscription.Subscription), nil
}

func (r *breakerRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.repo.Update(ctx, sub)
	})
	return err
}

func (r *breakerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.repo.Delete(ctx, id)
	})
	return err
}

func (r *breakerRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	v, err := r.execute(func() (any, error) {
		return r.repo.List(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*subscription.Subscription), nil
}

func (r *breakerRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	v, err := r.execute(func() (any, error) {
		return r.repo.Count(ctx, filter)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
