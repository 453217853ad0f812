package tier

import (
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Unlimited is the sentinel cap meaning a feature has no usage limit
const Unlimited int64 = -1

// Limits holds the numeric usage caps of one tier. A cap of -1 means
// unlimited; 0 is only legal for features the tier does not declare.
type Limits struct {
	MaxWatchlists           int64 `json:"max_watchlists"`
	MaxAlerts               int64 `json:"max_alerts"`
	APICallsPerDay          int64 `json:"api_calls_per_day"`
	MaxPortfolios           int64 `json:"max_portfolios"`
	AIAnalysisPerMonth      int64 `json:"ai_analysis_per_month"`
	MaxSubAccounts          int64 `json:"max_sub_accounts"`
	MaxCustomIndicators     int64 `json:"max_custom_indicators"`
	DataRetentionDays       int64 `json:"data_retention_days"`
	MaxWebsocketConnections int64 `json:"max_websocket_connections"`
}

// ForFeature maps a metered feature key to its cap
func (l Limits) ForFeature(key types.FeatureKey) (int64, error) {
	switch key {
	case types.FeatureWatchlists:
		return l.MaxWatchlists, nil
	case types.FeatureAlerts:
		return l.MaxAlerts, nil
	case types.FeatureAPICalls:
		return l.APICallsPerDay, nil
	case types.FeaturePortfolios:
		return l.MaxPortfolios, nil
	case types.FeatureAIAnalysis:
		return l.AIAnalysisPerMonth, nil
	case types.FeatureSubAccounts:
		return l.MaxSubAccounts, nil
	case types.FeatureCustomIndicators:
		return l.MaxCustomIndicators, nil
	case types.FeatureWebsocketConnections:
		return l.MaxWebsocketConnections, nil
	default:
		return 0, ierr.NewError("unsupported feature").
			WithHintf("Feature %s is not a metered capability", key).
			WithReportableDetails(map[string]any{
				"feature": key,
			}).
			Mark(ierr.ErrUnsupportedFeature)
	}
}

// Tier is one immutable catalog entry: display metadata, the authoritative
// per-cycle list prices, the feature set, and the usage limits. Quarterly and
// annual prices are configured list prices reflecting a real discount
// schedule; they are never derived from the monthly price at call time.
type Tier struct {
	ID             types.SubscriptionTier `json:"id"`
	DisplayName    string                 `json:"display_name"`
	Description    string                 `json:"description"`
	Currency       string                 `json:"currency"`
	MonthlyPrice   decimal.Decimal        `json:"monthly_price"`
	QuarterlyPrice decimal.Decimal        `json:"quarterly_price"`
	AnnualPrice    decimal.Decimal        `json:"annual_price"`
	Features       []types.FeatureKey     `json:"features"`
	Limits         Limits                 `json:"limits"`
}

// PriceFor returns the configured list price for the given billing cycle
func (t Tier) PriceFor(cycle types.BillingCycle) (decimal.Decimal, error) {
	switch cycle {
	case types.BillingCycleMonthly:
		return t.MonthlyPrice, nil
	case types.BillingCycleQuarterly:
		return t.QuarterlyPrice, nil
	case types.BillingCycleAnnual:
		return t.AnnualPrice, nil
	default:
		return decimal.Zero, ierr.NewError("invalid billing cycle").
			WithHint("Invalid billing cycle").
			WithReportableDetails(map[string]any{
				"billing_cycle": cycle,
			}).
			Mark(ierr.ErrValidation)
	}
}

// HasFeature returns true when the tier includes the given capability
func (t Tier) HasFeature(key types.FeatureKey) bool {
	return lo.Contains(t.Features, key)
}

// LimitFor returns the usage cap for a feature the tier offers. Features the
// tier does not include are reported the same way as unknown feature keys so
// callers translate both into a single "not available on your plan" answer.
func (t Tier) LimitFor(key types.FeatureKey) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if !t.HasFeature(key) {
		return 0, ierr.NewError("feature not included in tier").
			WithHintf("Feature %s is not available on the %s plan", key, t.ID).
			WithReportableDetails(map[string]any{
				"feature": key,
				"tier":    t.ID,
			}).
			Mark(ierr.ErrUnsupportedFeature)
	}
	return t.Limits.ForFeature(key)
}

// MonthlySavings returns how much one month costs less on the given cycle
// compared to paying monthly, rounded to 2 decimals. Display helper only,
// never used for charging.
func (t Tier) MonthlySavings(cycle types.BillingCycle) (decimal.Decimal, error) {
	price, err := t.PriceFor(cycle)
	if err != nil {
		return decimal.Zero, err
	}
	months := decimal.NewFromInt(int64(cycle.Months()))
	perMonth := price.Div(months)
	return t.MonthlyPrice.Sub(perMonth).Round(2), nil
}

// TotalSavings returns how much one full cycle costs less than the same
// months paid monthly, rounded to 2 decimals. Display helper only.
func (t Tier) TotalSavings(cycle types.BillingCycle) (decimal.Decimal, error) {
	price, err := t.PriceFor(cycle)
	if err != nil {
		return decimal.Zero, err
	}
	months := decimal.NewFromInt(int64(cycle.Months()))
	return t.MonthlyPrice.Mul(months).Sub(price).Round(2), nil
}

// Validate checks the catalog entry: a known tier ID, non-negative prices,
// and a legal cap (>=1 or -1) for every feature the tier declares.
func (t Tier) Validate() error {
	if err := t.ID.Validate(); err != nil {
		return err
	}

	if t.DisplayName == "" {
		return ierr.NewError("display_name is required").
			WithHintf("Tier %s has no display name", t.ID).
			Mark(ierr.ErrValidation)
	}

	for _, cycle := range types.BillingCycleValues {
		price, err := t.PriceFor(cycle)
		if err != nil {
			return err
		}
		if price.IsNegative() {
			return ierr.NewError("negative list price").
				WithHintf("Tier %s has a negative %s price", t.ID, cycle).
				WithReportableDetails(map[string]any{
					"tier":          t.ID,
					"billing_cycle": cycle,
					"price":         price.String(),
				}).
				Mark(ierr.ErrArithmeticInconsistency)
		}
	}

	for _, key := range t.Features {
		if err := key.Validate(); err != nil {
			return err
		}
		limit, err := t.Limits.ForFeature(key)
		if err != nil {
			return err
		}
		if err := ValidateLimit(limit); err != nil {
			return ierr.WithError(err).
				WithHintf("Tier %s has a misconfigured limit for %s", t.ID, key).
				WithReportableDetails(map[string]any{
					"tier":    t.ID,
					"feature": key,
					"limit":   limit,
				}).
				Mark(ierr.ErrLimitMisconfigured)
		}
	}

	if err := ValidateLimit(t.Limits.DataRetentionDays); err != nil {
		return ierr.WithError(err).
			WithHintf("Tier %s has a misconfigured data retention policy", t.ID).
			WithReportableDetails(map[string]any{
				"tier":                t.ID,
				"data_retention_days": t.Limits.DataRetentionDays,
			}).
			Mark(ierr.ErrLimitMisconfigured)
	}

	return nil
}

// ValidateLimit rejects caps of 0 or below, except the -1 unlimited sentinel
func ValidateLimit(limit int64) error {
	if limit == Unlimited || limit >= 1 {
		return nil
	}
	return ierr.NewError("usage limit misconfigured").
		WithHint("Usage limits must be positive or -1 for unlimited").
		WithReportableDetails(map[string]any{
			"limit": limit,
		}).
		Mark(ierr.ErrLimitMisconfigured)
}
