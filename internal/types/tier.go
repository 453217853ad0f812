package types

import (
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionTier identifies one of the product's subscription plans.
// Tiers are totally ordered (FREE < PRO < AI_PREMIUM < INSTITUTIONAL); the
// ordinal is the upgrade-path ordering used for upgrade/downgrade comparisons.
type SubscriptionTier string

const (
	SubscriptionTierFree          SubscriptionTier = "FREE"
	SubscriptionTierPro           SubscriptionTier = "PRO"
	SubscriptionTierAIPremium     SubscriptionTier = "AI_PREMIUM"
	SubscriptionTierInstitutional SubscriptionTier = "INSTITUTIONAL"
)

var SubscriptionTierValues = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPro,
	SubscriptionTierAIPremium,
	SubscriptionTierInstitutional,
}

var subscriptionTierOrdinals = map[SubscriptionTier]int{
	SubscriptionTierFree:          0,
	SubscriptionTierPro:           1,
	SubscriptionTierAIPremium:     2,
	SubscriptionTierInstitutional: 3,
}

func (t SubscriptionTier) String() string {
	return string(t)
}

func (t SubscriptionTier) Validate() error {
	if !lo.Contains(SubscriptionTierValues, t) {
		return ierr.NewError("invalid subscription tier").
			WithHint("Invalid subscription tier").
			WithReportableDetails(map[string]any{
				"tier":          t,
				"allowed_tiers": SubscriptionTierValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Ordinal returns the tier's position on the upgrade path, FREE being 0.
// Unknown tiers return -1.
func (t SubscriptionTier) Ordinal() int {
	if ord, ok := subscriptionTierOrdinals[t]; ok {
		return ord
	}
	return -1
}

// IsUpgradeTo returns true when moving from t to other raises the tier
func (t SubscriptionTier) IsUpgradeTo(other SubscriptionTier) bool {
	return t.Ordinal() >= 0 && other.Ordinal() >= 0 && other.Ordinal() > t.Ordinal()
}

// IsDowngradeTo returns true when moving from t to other lowers the tier
func (t SubscriptionTier) IsDowngradeTo(other SubscriptionTier) bool {
	return t.Ordinal() >= 0 && other.Ordinal() >= 0 && other.Ordinal() < t.Ordinal()
}
