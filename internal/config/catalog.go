package config

import (
	"github.com/finbase/subcore/internal/domain/tier"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

// CatalogConfig is the external configuration of the tier catalog. It is
// resolved into an immutable tier.Catalog once at startup; the engine only
// ever sees the resolved value.
type CatalogConfig struct {
	Tiers []TierConfig `mapstructure:"tiers" validate:"required,min=1"`
}

// TierConfig describes one tier. Prices are decimal strings so the
// configured list prices are reproduced exactly, never round-tripped
// through binary floats.
type TierConfig struct {
	ID             string       `mapstructure:"id" validate:"required"`
	DisplayName    string       `mapstructure:"display_name" validate:"required"`
	Description    string       `mapstructure:"description"`
	Currency       string       `mapstructure:"currency"`
	MonthlyPrice   string       `mapstructure:"monthly_price" validate:"required"`
	QuarterlyPrice string       `mapstructure:"quarterly_price" validate:"required"`
	AnnualPrice    string       `mapstructure:"annual_price" validate:"required"`
	Features       []string     `mapstructure:"features"`
	Limits         LimitsConfig `mapstructure:"limits"`
}

// LimitsConfig mirrors tier.Limits; -1 means unlimited
type LimitsConfig struct {
	MaxWatchlists           int64 `mapstructure:"max_watchlists"`
	MaxAlerts               int64 `mapstructure:"max_alerts"`
	APICallsPerDay          int64 `mapstructure:"api_calls_per_day"`
	MaxPortfolios           int64 `mapstructure:"max_portfolios"`
	AIAnalysisPerMonth      int64 `mapstructure:"ai_analysis_per_month"`
	MaxSubAccounts          int64 `mapstructure:"max_sub_accounts"`
	MaxCustomIndicators     int64 `mapstructure:"max_custom_indicators"`
	DataRetentionDays       int64 `mapstructure:"data_retention_days"`
	MaxWebsocketConnections int64 `mapstructure:"max_websocket_connections"`
}

// ToCatalog resolves the configuration into a validated immutable catalog
func (c CatalogConfig) ToCatalog() (tier.Catalog, error) {
	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, tc := range c.Tiers {
		t, err := tc.toTier()
		if err != nil {
			return tier.Catalog{}, err
		}
		tiers = append(tiers, t)
	}
	return tier.NewCatalog(tiers)
}

func (tc TierConfig) toTier() (tier.Tier, error) {
	monthly, err := parsePrice(tc.ID, "monthly_price", tc.MonthlyPrice)
	if err != nil {
		return tier.Tier{}, err
	}
	quarterly, err := parsePrice(tc.ID, "quarterly_price", tc.QuarterlyPrice)
	if err != nil {
		return tier.Tier{}, err
	}
	annual, err := parsePrice(tc.ID, "annual_price", tc.AnnualPrice)
	if err != nil {
		return tier.Tier{}, err
	}

	features := make([]types.FeatureKey, 0, len(tc.Features))
	for _, f := range tc.Features {
		key := types.FeatureKey(f)
		if err := key.Validate(); err != nil {
			return tier.Tier{}, err
		}
		features = append(features, key)
	}

	currency := tc.Currency
	if currency == "" {
		currency = "usd"
	}

	return tier.Tier{
		ID:             types.SubscriptionTier(tc.ID),
		DisplayName:    tc.DisplayName,
		Description:    tc.Description,
		Currency:       currency,
		MonthlyPrice:   monthly,
		QuarterlyPrice: quarterly,
		AnnualPrice:    annual,
		Features:       features,
		Limits: tier.Limits{
			MaxWatchlists:           tc.Limits.MaxWatchlists,
			MaxAlerts:               tc.Limits.MaxAlerts,
			APICallsPerDay:          tc.Limits.APICallsPerDay,
			MaxPortfolios:           tc.Limits.MaxPortfolios,
			AIAnalysisPerMonth:      tc.Limits.AIAnalysisPerMonth,
			MaxSubAccounts:          tc.Limits.MaxSubAccounts,
			MaxCustomIndicators:     tc.Limits.MaxCustomIndicators,
			DataRetentionDays:       tc.Limits.DataRetentionDays,
			MaxWebsocketConnections: tc.Limits.MaxWebsocketConnections,
		},
	}, nil
}

func parsePrice(tierID, field, raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("Tier %s has an unparseable %s", tierID, field).
			WithReportableDetails(map[string]any{
				"tier":  tierID,
				"field": field,
				"value": raw,
			}).
			Mark(ierr.ErrValidation)
	}
	return price, nil
}

// DefaultCatalogConfig returns the reference catalog. The quarterly and
// annual prices are authoritative list prices with their own discount
// schedule (roughly 6-10% quarterly and 17% annual depending on tier);
// they are deliberately not derived from the monthly price.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Tiers: []TierConfig{
			{
				ID:             "FREE",
				DisplayName:    "Free",
				Description:    "Market data essentials for getting started",
				Currency:       "usd",
				MonthlyPrice:   "0",
				QuarterlyPrice: "0",
				AnnualPrice:    "0",
				Features: []string{
					"watchlists",
					"alerts",
					"api_calls",
					"portfolios",
					"websocket_connections",
				},
				Limits: LimitsConfig{
					MaxWatchlists:           3,
					MaxAlerts:               5,
					APICallsPerDay:          100,
					MaxPortfolios:           1,
					DataRetentionDays:       30,
					MaxWebsocketConnections: 1,
				},
			},
			{
				ID:             "PRO",
				DisplayName:    "Pro",
				Description:    "Full analytics toolkit for active traders",
				Currency:       "usd",
				MonthlyPrice:   "29.99",
				QuarterlyPrice: "83.99",
				AnnualPrice:    "299.99",
				Features: []string{
					"watchlists",
					"alerts",
					"api_calls",
					"portfolios",
					"custom_indicators",
					"websocket_connections",
				},
				Limits: LimitsConfig{
					MaxWatchlists:           25,
					MaxAlerts:               100,
					APICallsPerDay:          10000,
					MaxPortfolios:           10,
					MaxCustomIndicators:     20,
					DataRetentionDays:       365,
					MaxWebsocketConnections: 5,
				},
			},
			{
				ID:             "AI_PREMIUM",
				DisplayName:    "AI Premium",
				Description:    "Pro plus AI-driven research and signals",
				Currency:       "usd",
				MonthlyPrice:   "59.99",
				QuarterlyPrice: "167.99",
				AnnualPrice:    "599.99",
				Features: []string{
					"watchlists",
					"alerts",
					"api_calls",
					"portfolios",
					"ai_analysis",
					"custom_indicators",
					"websocket_connections",
				},
				Limits: LimitsConfig{
					MaxWatchlists:           100,
					MaxAlerts:               500,
					APICallsPerDay:          50000,
					MaxPortfolios:           25,
					AIAnalysisPerMonth:      500,
					MaxCustomIndicators:     100,
					DataRetentionDays:       1825,
					MaxWebsocketConnections: 20,
				},
			},
			{
				ID:             "INSTITUTIONAL",
				DisplayName:    "Institutional",
				Description:    "Unlimited analytics with team management",
				Currency:       "usd",
				MonthlyPrice:   "299.99",
				QuarterlyPrice: "824.99",
				AnnualPrice:    "2999.99",
				Features: []string{
					"watchlists",
					"alerts",
					"api_calls",
					"portfolios",
					"ai_analysis",
					"sub_accounts",
					"custom_indicators",
					"websocket_connections",
				},
				Limits: LimitsConfig{
					MaxWatchlists:           -1,
					MaxAlerts:               -1,
					APICallsPerDay:          -1,
					MaxPortfolios:           -1,
					AIAnalysisPerMonth:      -1,
					MaxSubAccounts:          50,
					MaxCustomIndicators:     -1,
					DataRetentionDays:       3650,
					MaxWebsocketConnections: 100,
				},
			},
		},
	}
}
