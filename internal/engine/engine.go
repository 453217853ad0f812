// Package engine is the pure rules facade over the subscription domain:
// status transitions, billing amounts, usage verdicts and change
// classification. It performs no I/O, keeps no mutable state, and receives
// its catalog and clock at construction.
package engine

import (
	"time"

	"github.com/finbase/subcore/internal/domain/history"
	"github.com/finbase/subcore/internal/domain/pricing"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/domain/tier"
	"github.com/finbase/subcore/internal/domain/usage"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/result"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultPromotionPercent is the promotion fraction applied when none is
// configured.
var DefaultPromotionPercent = decimal.NewFromFloat(0.20)

type Engine struct {
	catalog          tier.Catalog
	clock            func() time.Time
	promotionPercent decimal.Decimal

	standard    pricing.Calculator
	promotional pricing.Calculator
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock injects the time source. Tests pass a fixed clock.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithPromotionPercent overrides the promotion fraction used by promotional
// billing.
func WithPromotionPercent(percent decimal.Decimal) Option {
	return func(e *Engine) {
		e.promotionPercent = percent
	}
}

// New builds an engine over an immutable catalog. The default clock is
// time.Now in UTC and the default promotion percent is 0.20.
func New(catalog tier.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:          catalog,
		clock:            func() time.Time { return time.Now().UTC() },
		promotionPercent: DefaultPromotionPercent,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.standard = pricing.NewCalculator(pricing.CalculatorTypeStandard, catalog, decimal.Zero)
	e.promotional = pricing.NewCalculator(pricing.CalculatorTypePromotional, catalog, e.promotionPercent)

	return e
}

// Catalog returns the catalog the engine was built with.
func (e *Engine) Catalog() tier.Catalog {
	return e.catalog
}

// PromotionPercent returns the promotion fraction promotional billing applies.
func (e *Engine) PromotionPercent() decimal.Decimal {
	return e.promotionPercent
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// EvaluateTransition checks a status change against the transition table and
// returns the validated target.
func (e *Engine) EvaluateTransition(from, to types.SubscriptionStatus) result.Result[types.SubscriptionStatus] {
	if err := from.Validate(); err != nil {
		return result.Failure[types.SubscriptionStatus](err)
	}
	if err := to.Validate(); err != nil {
		return result.Failure[types.SubscriptionStatus](err)
	}

	if !from.CanTransitionTo(to) {
		return result.Failure[types.SubscriptionStatus](types.NewInvalidTransitionError(from, to))
	}

	return result.Success(to)
}

// CalculateBillingAmount resolves the per-cycle charge for a tier, applying
// the promotion discount when promotionActive is set.
func (e *Engine) CalculateBillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle, promotionActive bool) result.Result[decimal.Decimal] {
	if promotionActive {
		return e.promotional.BillingAmount(tierID, cycle)
	}
	return e.standard.BillingAmount(tierID, cycle)
}

// NextBillingDate advances from by one cycle length with month-end clamping.
func (e *Engine) NextBillingDate(cycle types.BillingCycle, from time.Time) time.Time {
	return pricing.NextBillingDate(cycle, from)
}

// CheckUsage evaluates a usage record against its cap without mutating it.
func (e *Engine) CheckUsage(rec *usage.UsageTracking) result.Result[usage.Verdict] {
	if rec == nil {
		return result.Failure[usage.Verdict](ierr.NewError("usage record is required").
			WithHint("Usage check needs a usage record").
			Mark(ierr.ErrValidation))
	}

	if err := rec.Feature.Validate(); err != nil {
		return result.Failure[usage.Verdict](err)
	}

	if err := tier.ValidateLimit(rec.UsageLimit); err != nil {
		return result.Failure[usage.Verdict](err)
	}

	return result.Success(rec.Verdict())
}

// ApplyUsageIncrement records amount against a copy of the record and
// reports whether the copy stayed within its cap. The input record is never
// mutated.
func (e *Engine) ApplyUsageIncrement(rec *usage.UsageTracking, amount int64) result.Result[usage.IncrementOutcome] {
	if rec == nil {
		return result.Failure[usage.IncrementOutcome](ierr.NewError("usage record is required").
			WithHint("Usage increment needs a usage record").
			Mark(ierr.ErrValidation))
	}

	if amount < 0 {
		return result.Failure[usage.IncrementOutcome](ierr.NewError("increment amount must be non negative").
			WithHint("Usage amounts cannot be negative").
			WithReportableDetails(map[string]interface{}{
				"amount": amount,
			}).
			Mark(ierr.ErrValidation))
	}

	if err := tier.ValidateLimit(rec.UsageLimit); err != nil {
		return result.Failure[usage.IncrementOutcome](err)
	}

	updated := rec.Copy()
	within := updated.IncrementUsage(amount, e.clock())

	return result.Success(usage.IncrementOutcome{
		Record:           updated,
		StillWithinLimit: within,
	})
}

// ResetUsagePeriod re-anchors a copy of the record at the engine's current
// time with zeroed counters.
func (e *Engine) ResetUsagePeriod(rec *usage.UsageTracking) result.Result[*usage.UsageTracking] {
	if rec == nil {
		return result.Failure[*usage.UsageTracking](ierr.NewError("usage record is required").
			WithHint("Usage reset needs a usage record").
			Mark(ierr.ErrValidation))
	}

	updated := rec.Copy()
	updated.ResetUsage(e.clock())

	return result.Success(updated)
}

// NewUsageRecord builds the default usage row for a (subscription, feature)
// pair: the tier's limit for the feature and the feature's reset cadence.
func (e *Engine) NewUsageRecord(subscriptionID, userID string, tierID types.SubscriptionTier, feature types.FeatureKey) result.Result[*usage.UsageTracking] {
	if subscriptionID == "" || userID == "" {
		return result.Failure[*usage.UsageTracking](ierr.NewError("subscription and user ids are required").
			WithHint("Usage rows are keyed by subscription and user").
			Mark(ierr.ErrValidation))
	}

	limit, err := e.catalog.LimitFor(tierID, feature)
	if err != nil {
		return result.Failure[*usage.UsageTracking](err)
	}

	resetDays := e.catalog.ResetFrequencyDays(feature)
	rec := usage.NewUsageTracking(subscriptionID, userID, feature, limit, resetDays, e.clock())

	return result.Success(rec)
}

// ClassifyChange derives the change type between two subscription snapshots
// and builds the audit row. The initiator defaults to SYSTEM; callers with
// better knowledge overwrite it before persisting.
func (e *Engine) ClassifyChange(oldSub, newSub *subscription.Subscription) result.Result[*history.SubscriptionHistory] {
	changeType, err := history.DeriveChangeType(oldSub, newSub)
	if err != nil {
		return result.Failure[*history.SubscriptionHistory](err)
	}

	row, err := history.NewFromSnapshots(oldSub, newSub, changeType, types.ChangeInitiatorSystem, "", e.clock())
	if err != nil {
		return result.Failure[*history.SubscriptionHistory](err)
	}

	return result.Success(row)
}
