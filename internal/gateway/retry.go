package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/logger"
)

// RetryPolicy bounds the optimistic-lock retry loop around version-checked
// subscription updates.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy matches the shipped configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		Multiplier:      2.0,
	}
}

// RetryPolicyFromConfig builds a RetryPolicy from configuration, falling back
// to defaults for unset values.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 1 {
		policy.Multiplier = cfg.Multiplier
	}
	return policy
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	// Bounded by attempt count, not wall clock.
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// WithVersionRetry runs op, retrying with exponential backoff as long as it
// fails with a version conflict. Every other failure is returned immediately.
func WithVersionRetry(ctx context.Context, policy RetryPolicy, log *logger.Logger, op func(ctx context.Context) error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !ierr.IsVersionConflict(err) {
			return backoff.Permanent(err)
		}
		log.Warnw("version conflict, retrying on a fresh snapshot",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts)
		return err
	}, policy.backOff(ctx))
}

// UpdateWithRetry loads the subscription, applies mutate and persists the
// result, retrying version conflicts on a freshly reloaded aggregate. The
// mutator always receives the latest stored state, so a lost read is never
// blindly reapplied over someone else's write.
func UpdateWithRetry(ctx context.Context, repo subscription.Repository, policy RetryPolicy, log *logger.Logger, id string, mutate func(*subscription.Subscription) error) (*subscription.Subscription, error) {
	var out *subscription.Subscription

	err := WithVersionRetry(ctx, policy, log, func(ctx context.Context) error {
		sub, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		if err := mutate(sub); err != nil {
			return err
		}

		if err := repo.Update(ctx, sub); err != nil {
			return err
		}

		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
