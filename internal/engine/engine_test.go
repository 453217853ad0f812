package engine

import (
	"testing"
	"time"

	"github.com/finbase/subcore/internal/config"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/domain/tier"
	"github.com/finbase/subcore/internal/domain/usage"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	catalog, err := config.DefaultCatalogConfig().ToCatalog()
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(catalog, opts...)
}

func TestEvaluateTransition(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("legal transition returns the target", func(t *testing.T) {
		res := eng.EvaluateTransition(types.SubscriptionStatusPending, types.SubscriptionStatusActive)
		require.True(t, res.IsSuccess())
		assert.Equal(t, types.SubscriptionStatusActive, res.Value())
	})

	t.Run("illegal transition fails typed", func(t *testing.T) {
		res := eng.EvaluateTransition(types.SubscriptionStatusTerminated, types.SubscriptionStatusActive)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsInvalidTransition(res.Err()))
	})

	t.Run("self transition is not listed", func(t *testing.T) {
		res := eng.EvaluateTransition(types.SubscriptionStatusActive, types.SubscriptionStatusActive)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsInvalidTransition(res.Err()))
	})

	t.Run("unknown status is a validation failure", func(t *testing.T) {
		res := eng.EvaluateTransition("LIMBO", types.SubscriptionStatusActive)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsValidation(res.Err()))
	})
}

func TestCalculateBillingAmount(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("free is zero with and without promotion", func(t *testing.T) {
		for _, cycle := range types.BillingCycleValues {
			for _, promo := range []bool{false, true} {
				res := eng.CalculateBillingAmount(types.SubscriptionTierFree, cycle, promo)
				require.True(t, res.IsSuccess())
				assert.True(t, res.Value().IsZero(), "cycle %s promo %v", cycle, promo)
			}
		}
	})

	t.Run("standard pro monthly", func(t *testing.T) {
		res := eng.CalculateBillingAmount(types.SubscriptionTierPro, types.BillingCycleMonthly, false)
		require.True(t, res.IsSuccess())
		assert.True(t, res.Value().Equal(decimal.RequireFromString("29.99")))
	})

	t.Run("promotional pro monthly rounds half up", func(t *testing.T) {
		res := eng.CalculateBillingAmount(types.SubscriptionTierPro, types.BillingCycleMonthly, true)
		require.True(t, res.IsSuccess())
		assert.True(t, res.Value().Equal(decimal.RequireFromString("23.99")), "got %s", res.Value())
	})

	t.Run("configured promotion percent is honored", func(t *testing.T) {
		eng := newTestEngine(t, WithPromotionPercent(decimal.NewFromFloat(0.50)))

		res := eng.CalculateBillingAmount(types.SubscriptionTierAIPremium, types.BillingCycleMonthly, true)
		require.True(t, res.IsSuccess())
		// 59.99 * 0.50 = 29.995 -> 30.00
		assert.True(t, res.Value().Equal(decimal.RequireFromString("30.00")), "got %s", res.Value())
	})

	t.Run("unknown tier fails", func(t *testing.T) {
		res := eng.CalculateBillingAmount("PLATINUM", types.BillingCycleMonthly, false)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsNotFound(res.Err()))
	})
}

func TestEngineNextBillingDate(t *testing.T) {
	eng := newTestEngine(t)

	from := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), eng.NextBillingDate(types.BillingCycleMonthly, from))
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), eng.NextBillingDate(types.BillingCycleQuarterly, from))
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), eng.NextBillingDate(types.BillingCycleAnnual, from))
}

func TestCheckUsage(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("verdict snapshot", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAPICalls, 100, 1, fixedNow)
		rec.UsageCount = 85

		res := eng.CheckUsage(rec)
		require.True(t, res.IsSuccess())

		v := res.Value()
		assert.True(t, v.WithinLimit)
		assert.Equal(t, int64(15), v.Remaining)
		assert.InDelta(t, 85.0, v.Percentage, 0.0001)
		assert.Equal(t, types.UsageWarningLevelMedium, v.WarningLevel)
	})

	t.Run("nil record", func(t *testing.T) {
		res := eng.CheckUsage(nil)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsValidation(res.Err()))
	})

	t.Run("unknown feature", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", "time_travel", 100, 30, fixedNow)

		res := eng.CheckUsage(rec)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsUnsupportedFeature(res.Err()))
	})

	t.Run("misconfigured limit", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAlerts, 0, 30, fixedNow)

		res := eng.CheckUsage(rec)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsLimitMisconfigured(res.Err()))
	})
}

func TestApplyUsageIncrement(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("input record is never mutated", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAlerts, 100, 30, fixedNow)
		rec.UsageCount = 99

		res := eng.ApplyUsageIncrement(rec, 5)
		require.True(t, res.IsSuccess())

		out := res.Value()
		assert.False(t, out.StillWithinLimit)
		assert.Equal(t, int64(104), out.Record.UsageCount)
		assert.True(t, out.Record.LimitExceeded)
		require.NotNil(t, out.Record.FirstExceededAt)
		assert.Equal(t, fixedNow, *out.Record.FirstExceededAt)

		assert.Equal(t, int64(99), rec.UsageCount, "input stays untouched")
		assert.False(t, rec.LimitExceeded)
	})

	t.Run("landing exactly on the cap stays within", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAlerts, 100, 30, fixedNow)
		rec.UsageCount = 98

		res := eng.ApplyUsageIncrement(rec, 2)
		require.True(t, res.IsSuccess())
		assert.True(t, res.Value().StillWithinLimit)
		assert.False(t, res.Value().Record.LimitExceeded)
	})

	t.Run("negative amount", func(t *testing.T) {
		rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAlerts, 100, 30, fixedNow)

		res := eng.ApplyUsageIncrement(rec, -1)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsValidation(res.Err()))
	})
}

func TestResetUsagePeriod(t *testing.T) {
	eng := newTestEngine(t)

	anchored := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := usage.NewUsageTracking("subs_01", "user_01", types.FeatureAlerts, 100, 30, anchored)
	rec.IncrementUsage(150, anchored)

	res := eng.ResetUsagePeriod(rec)
	require.True(t, res.IsSuccess())

	fresh := res.Value()
	assert.Equal(t, int64(0), fresh.UsageCount)
	assert.False(t, fresh.LimitExceeded)
	assert.Nil(t, fresh.FirstExceededAt)
	assert.Equal(t, fixedNow, fresh.PeriodStart, "reset re-anchors at the engine clock")
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), fresh.PeriodEnd)

	assert.Equal(t, int64(150), rec.UsageCount, "input stays untouched")
}

func TestNewUsageRecord(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("limit and cadence come from the catalog", func(t *testing.T) {
		res := eng.NewUsageRecord("subs_01", "user_01", types.SubscriptionTierPro, types.FeatureAPICalls)
		require.True(t, res.IsSuccess())

		rec := res.Value()
		assert.Equal(t, int64(10000), rec.UsageLimit)
		assert.Equal(t, tier.APICallsResetDays, rec.ResetFrequencyDays)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rec.PeriodStart)
		assert.NoError(t, rec.Validate())
	})

	t.Run("monthly cadence for everything else", func(t *testing.T) {
		res := eng.NewUsageRecord("subs_01", "user_01", types.SubscriptionTierAIPremium, types.FeatureAIAnalysis)
		require.True(t, res.IsSuccess())
		assert.Equal(t, tier.DefaultResetDays, res.Value().ResetFrequencyDays)
		assert.Equal(t, int64(500), res.Value().UsageLimit)
	})

	t.Run("feature not in tier", func(t *testing.T) {
		res := eng.NewUsageRecord("subs_01", "user_01", types.SubscriptionTierFree, types.FeatureAIAnalysis)
		require.True(t, res.IsFailure())
		assert.True(t, ierr.IsUnsupportedFeature(res.Err()))
	})
}

// The three-step lifecycle from the acceptance scenario: activate, upgrade,
// cancel, with the audit projection checked at each step.
func TestLifecycleClassification(t *testing.T) {
	eng := newTestEngine(t)

	pending := &subscription.Subscription{
		ID:            "subs_e2e",
		UserID:        "user_e2e",
		TierID:        types.SubscriptionTierPro,
		Status:        types.SubscriptionStatusPending,
		BillingCycle:  types.BillingCycleMonthly,
		MonthlyPrice:  decimal.RequireFromString("29.99"),
		BillingAmount: decimal.RequireFromString("29.99"),
		Currency:      "usd",
		Version:       1,
	}

	// activation
	require.True(t, eng.EvaluateTransition(pending.Status, types.SubscriptionStatusActive).IsSuccess())
	active := *pending
	active.Status = types.SubscriptionStatusActive

	res := eng.ClassifyChange(pending, &active)
	require.True(t, res.IsSuccess())
	assert.Equal(t, types.ChangeTypeActivated, res.Value().ChangeType)
	assert.False(t, res.Value().IsUpgrade())

	// upgrade via the two-step pending flow
	require.True(t, eng.EvaluateTransition(active.Status, types.SubscriptionStatusUpgradePending).IsSuccess())
	require.True(t, eng.EvaluateTransition(types.SubscriptionStatusUpgradePending, types.SubscriptionStatusActive).IsSuccess())

	upgraded := active
	upgraded.TierID = types.SubscriptionTierAIPremium
	upgraded.MonthlyPrice = decimal.RequireFromString("59.99")
	upgraded.BillingAmount = eng.CalculateBillingAmount(types.SubscriptionTierAIPremium, types.BillingCycleMonthly, false).Value()

	res = eng.ClassifyChange(&active, &upgraded)
	require.True(t, res.IsSuccess())
	row := res.Value()
	assert.Equal(t, types.ChangeTypeUpgraded, row.ChangeType)
	assert.True(t, row.IsUpgrade())
	assert.True(t, row.RevenueImpact().IsPositive())
	assert.True(t, row.RevenueImpact().Equal(decimal.RequireFromString("30.00")))

	// cancellation
	require.True(t, eng.EvaluateTransition(upgraded.Status, types.SubscriptionStatusCancelled).IsSuccess())
	cancelled := upgraded
	cancelled.Status = types.SubscriptionStatusCancelled

	res = eng.ClassifyChange(&upgraded, &cancelled)
	require.True(t, res.IsSuccess())
	assert.Equal(t, types.ChangeTypeCancelled, res.Value().ChangeType)
	assert.True(t, res.Value().IsCancellation())
}
