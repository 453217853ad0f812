package tier

import (
	"testing"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTiers() []Tier {
	return []Tier{
		{
			ID:             types.SubscriptionTierFree,
			DisplayName:    "Free",
			Currency:       "usd",
			MonthlyPrice:   decimal.Zero,
			QuarterlyPrice: decimal.Zero,
			AnnualPrice:    decimal.Zero,
			Features: []types.FeatureKey{
				types.FeatureWatchlists,
				types.FeatureAlerts,
				types.FeatureAPICalls,
			},
			Limits: Limits{
				MaxWatchlists:           3,
				MaxAlerts:               5,
				APICallsPerDay:          100,
				DataRetentionDays:       30,
				MaxWebsocketConnections: 1,
			},
		},
		{
			ID:             types.SubscriptionTierPro,
			DisplayName:    "Pro",
			Currency:       "usd",
			MonthlyPrice:   decimal.RequireFromString("29.99"),
			QuarterlyPrice: decimal.RequireFromString("83.99"),
			AnnualPrice:    decimal.RequireFromString("299.99"),
			Features: []types.FeatureKey{
				types.FeatureWatchlists,
				types.FeatureAlerts,
				types.FeatureAPICalls,
				types.FeaturePortfolios,
			},
			Limits: Limits{
				MaxWatchlists:           25,
				MaxAlerts:               100,
				APICallsPerDay:          10000,
				MaxPortfolios:           10,
				DataRetentionDays:       365,
				MaxWebsocketConnections: 5,
			},
		},
		{
			ID:             types.SubscriptionTierAIPremium,
			DisplayName:    "AI Premium",
			Currency:       "usd",
			MonthlyPrice:   decimal.RequireFromString("59.99"),
			QuarterlyPrice: decimal.RequireFromString("167.99"),
			AnnualPrice:    decimal.RequireFromString("599.99"),
			Features: []types.FeatureKey{
				types.FeatureWatchlists,
				types.FeatureAPICalls,
				types.FeatureAIAnalysis,
			},
			Limits: Limits{
				MaxWatchlists:           100,
				APICallsPerDay:          50000,
				AIAnalysisPerMonth:      500,
				DataRetentionDays:       1825,
				MaxWebsocketConnections: 20,
			},
		},
		{
			ID:             types.SubscriptionTierInstitutional,
			DisplayName:    "Institutional",
			Currency:       "usd",
			MonthlyPrice:   decimal.RequireFromString("299.99"),
			QuarterlyPrice: decimal.RequireFromString("824.99"),
			AnnualPrice:    decimal.RequireFromString("2999.99"),
			Features: []types.FeatureKey{
				types.FeatureWatchlists,
				types.FeatureAPICalls,
				types.FeatureAIAnalysis,
				types.FeatureSubAccounts,
			},
			Limits: Limits{
				MaxWatchlists:           Unlimited,
				APICallsPerDay:          Unlimited,
				AIAnalysisPerMonth:      Unlimited,
				MaxSubAccounts:          50,
				DataRetentionDays:       3650,
				MaxWebsocketConnections: 100,
			},
		},
	}
}

func TestNewCatalog(t *testing.T) {
	t.Run("accepts a complete valid catalog", func(t *testing.T) {
		catalog, err := NewCatalog(testTiers())
		require.NoError(t, err)
		assert.Len(t, catalog.Tiers(), 4)
	})

	t.Run("rejects a missing tier", func(t *testing.T) {
		_, err := NewCatalog(testTiers()[:3])
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))

		details := ierr.SafeDetails(err)
		assert.Equal(t, "INSTITUTIONAL", details["missing_tier"])
	})

	t.Run("rejects a duplicate tier", func(t *testing.T) {
		tiers := testTiers()
		tiers = append(tiers, tiers[1])
		_, err := NewCatalog(tiers)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("rejects a zero limit on a declared feature", func(t *testing.T) {
		tiers := testTiers()
		tiers[1].Limits.MaxPortfolios = 0
		_, err := NewCatalog(tiers)
		require.Error(t, err)
		assert.True(t, ierr.IsLimitMisconfigured(err))
	})

	t.Run("rejects a negative price", func(t *testing.T) {
		tiers := testTiers()
		tiers[2].AnnualPrice = decimal.RequireFromString("-1")
		_, err := NewCatalog(tiers)
		require.Error(t, err)
		assert.True(t, ierr.IsArithmeticInconsistency(err))
	})

	t.Run("rejects an unknown tier id", func(t *testing.T) {
		tiers := testTiers()
		tiers[0].ID = "DIAMOND"
		_, err := NewCatalog(tiers)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("is insulated from later input mutation", func(t *testing.T) {
		tiers := testTiers()
		catalog, err := NewCatalog(tiers)
		require.NoError(t, err)

		tiers[1].Features[0] = types.FeatureSubAccounts
		got, err := catalog.Tier(types.SubscriptionTierPro)
		require.NoError(t, err)
		assert.Equal(t, types.FeatureWatchlists, got.Features[0])
	})
}

func TestCatalogLookup(t *testing.T) {
	catalog, err := NewCatalog(testTiers())
	require.NoError(t, err)

	t.Run("returns configured entry", func(t *testing.T) {
		got, err := catalog.Tier(types.SubscriptionTierPro)
		require.NoError(t, err)
		assert.Equal(t, "Pro", got.DisplayName)
		assert.True(t, got.MonthlyPrice.Equal(decimal.RequireFromString("29.99")))
	})

	t.Run("unknown tier is not found", func(t *testing.T) {
		_, err := catalog.Tier("DIAMOND")
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
	})

	t.Run("tiers are ordered by upgrade path", func(t *testing.T) {
		ids := make([]types.SubscriptionTier, 0, 4)
		for _, entry := range catalog.Tiers() {
			ids = append(ids, entry.ID)
		}
		assert.Equal(t, types.SubscriptionTierValues, ids)
	})
}

func TestLimitFor(t *testing.T) {
	catalog, err := NewCatalog(testTiers())
	require.NoError(t, err)

	t.Run("returns the configured cap", func(t *testing.T) {
		limit, err := catalog.LimitFor(types.SubscriptionTierPro, types.FeatureAlerts)
		require.NoError(t, err)
		assert.Equal(t, int64(100), limit)
	})

	t.Run("unlimited cap passes through", func(t *testing.T) {
		limit, err := catalog.LimitFor(types.SubscriptionTierInstitutional, types.FeatureAPICalls)
		require.NoError(t, err)
		assert.Equal(t, Unlimited, limit)
	})

	t.Run("feature not in tier is unsupported", func(t *testing.T) {
		_, err := catalog.LimitFor(types.SubscriptionTierFree, types.FeatureAIAnalysis)
		require.Error(t, err)
		assert.True(t, ierr.IsUnsupportedFeature(err))
	})

	t.Run("unknown feature key is unsupported", func(t *testing.T) {
		_, err := catalog.LimitFor(types.SubscriptionTierPro, "time_travel")
		require.Error(t, err)
		assert.True(t, ierr.IsUnsupportedFeature(err))
	})
}

func TestResetFrequencyDays(t *testing.T) {
	catalog, err := NewCatalog(testTiers())
	require.NoError(t, err)

	assert.Equal(t, APICallsResetDays, catalog.ResetFrequencyDays(types.FeatureAPICalls))
	assert.Equal(t, DefaultResetDays, catalog.ResetFrequencyDays(types.FeatureWatchlists))
	assert.Equal(t, DefaultResetDays, catalog.ResetFrequencyDays(types.FeatureAIAnalysis))
}

func TestSavings(t *testing.T) {
	catalog, err := NewCatalog(testTiers())
	require.NoError(t, err)

	pro, err := catalog.Tier(types.SubscriptionTierPro)
	require.NoError(t, err)

	t.Run("monthly cycle saves nothing", func(t *testing.T) {
		monthly, err := pro.MonthlySavings(types.BillingCycleMonthly)
		require.NoError(t, err)
		assert.True(t, monthly.IsZero())

		total, err := pro.TotalSavings(types.BillingCycleMonthly)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("annual savings against monthly list price", func(t *testing.T) {
		// 29.99 * 12 - 299.99 = 59.89
		total, err := pro.TotalSavings(types.BillingCycleAnnual)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("59.89")), "got %s", total)

		// 29.99 - 299.99/12 = 4.99 (rounded)
		monthly, err := pro.MonthlySavings(types.BillingCycleAnnual)
		require.NoError(t, err)
		assert.True(t, monthly.Equal(decimal.RequireFromString("4.99")), "got %s", monthly)
	})

	t.Run("quarterly savings", func(t *testing.T) {
		// 29.99 * 3 - 83.99 = 5.98
		total, err := pro.TotalSavings(types.BillingCycleQuarterly)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("5.98")), "got %s", total)
	})
}
