package types

import (
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
)

// FeatureKey names a metered capability whose usage is tracked per subscription.
// Data-retention days is a static tier policy, not a metered feature, so it has
// no key here.
type FeatureKey string

const (
	FeatureWatchlists           FeatureKey = "watchlists"
	FeatureAlerts               FeatureKey = "alerts"
	FeatureAPICalls             FeatureKey = "api_calls"
	FeaturePortfolios           FeatureKey = "portfolios"
	FeatureAIAnalysis           FeatureKey = "ai_analysis"
	FeatureSubAccounts          FeatureKey = "sub_accounts"
	FeatureCustomIndicators     FeatureKey = "custom_indicators"
	FeatureWebsocketConnections FeatureKey = "websocket_connections"
)

var FeatureKeyValues = []FeatureKey{
	FeatureWatchlists,
	FeatureAlerts,
	FeatureAPICalls,
	FeaturePortfolios,
	FeatureAIAnalysis,
	FeatureSubAccounts,
	FeatureCustomIndicators,
	FeatureWebsocketConnections,
}

func (f FeatureKey) String() string {
	return string(f)
}

func (f FeatureKey) Validate() error {
	if !lo.Contains(FeatureKeyValues, f) {
		return ierr.NewError("unsupported feature").
			WithHintf("Feature %s is not a metered capability", f).
			WithReportableDetails(map[string]any{
				"feature":        f,
				"allowed_values": FeatureKeyValues,
			}).
			Mark(ierr.ErrUnsupportedFeature)
	}
	return nil
}
