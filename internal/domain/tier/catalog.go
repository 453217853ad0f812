// Package tier holds the static subscription tier catalog: per-tier display
// metadata, the authoritative per-cycle list prices, feature sets, and usage
// limits. The catalog is built once from configuration at startup and passed
// into the engine as a plain immutable value; nothing mutates it afterwards.
package tier

import (
	"sort"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
)

const (
	// DefaultResetDays is the usage period length for most metered features
	DefaultResetDays = 30
	// APICallsResetDays is the usage period length for the api_calls feature,
	// which is capped per day rather than per month
	APICallsResetDays = 1
)

// Catalog is the immutable set of all subscription tiers. Construct it with
// NewCatalog and hand it to the engine; lookups never mutate it.
type Catalog struct {
	tiers map[types.SubscriptionTier]Tier
}

// NewCatalog validates the given entries and builds the catalog. Every tier
// of the product must be present exactly once.
func NewCatalog(tiers []Tier) (Catalog, error) {
	byID := make(map[types.SubscriptionTier]Tier, len(tiers))
	for _, t := range tiers {
		if err := t.Validate(); err != nil {
			return Catalog{}, err
		}
		if _, exists := byID[t.ID]; exists {
			return Catalog{}, ierr.NewError("duplicate tier in catalog").
				WithHintf("Tier %s is configured more than once", t.ID).
				WithReportableDetails(map[string]any{
					"tier": t.ID,
				}).
				Mark(ierr.ErrValidation)
		}
		// Copy the feature slice so later mutation of the input cannot
		// reach the catalog.
		features := make([]types.FeatureKey, len(t.Features))
		copy(features, t.Features)
		t.Features = features
		byID[t.ID] = t
	}

	for _, id := range types.SubscriptionTierValues {
		if _, ok := byID[id]; !ok {
			return Catalog{}, ierr.NewError("incomplete tier catalog").
				WithHintf("Tier %s is missing from the catalog", id).
				WithReportableDetails(map[string]any{
					"missing_tier": id,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	return Catalog{tiers: byID}, nil
}

// Tier returns the catalog entry for the given tier
func (c Catalog) Tier(id types.SubscriptionTier) (Tier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return Tier{}, ierr.NewError("tier not found in catalog").
			WithHintf("Tier %s is not configured", id).
			WithReportableDetails(map[string]any{
				"tier": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	features := make([]types.FeatureKey, len(t.Features))
	copy(features, t.Features)
	t.Features = features
	return t, nil
}

// Tiers returns all catalog entries ordered by the upgrade path
func (c Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Ordinal() < out[j].ID.Ordinal()
	})
	return out
}

// LimitFor returns the usage cap of a feature under the given tier
func (c Catalog) LimitFor(id types.SubscriptionTier, key types.FeatureKey) (int64, error) {
	t, err := c.Tier(id)
	if err != nil {
		return 0, err
	}
	return t.LimitFor(key)
}

// ResetFrequencyDays returns the usage period length for a feature. API call
// caps are daily; every other metered feature accumulates over 30 days.
func (c Catalog) ResetFrequencyDays(key types.FeatureKey) int {
	if key == types.FeatureAPICalls {
		return APICallsResetDays
	}
	return DefaultResetDays
}
