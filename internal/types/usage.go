package types

import (
	"time"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
)

// UsageWarningLevel grades how close a usage counter is to its limit
type UsageWarningLevel string

const (
	UsageWarningLevelNone     UsageWarningLevel = "NONE"
	UsageWarningLevelLow      UsageWarningLevel = "LOW"
	UsageWarningLevelMedium   UsageWarningLevel = "MEDIUM"
	UsageWarningLevelHigh     UsageWarningLevel = "HIGH"
	UsageWarningLevelCritical UsageWarningLevel = "CRITICAL"
)

var UsageWarningLevelValues = []UsageWarningLevel{
	UsageWarningLevelNone,
	UsageWarningLevelLow,
	UsageWarningLevelMedium,
	UsageWarningLevelHigh,
	UsageWarningLevelCritical,
}

func (l UsageWarningLevel) String() string {
	return string(l)
}

func (l UsageWarningLevel) Validate() error {
	if !lo.Contains(UsageWarningLevelValues, l) {
		return ierr.NewError("invalid usage warning level").
			WithHint("Invalid usage warning level").
			WithReportableDetails(map[string]any{
				"warning_level":  l,
				"allowed_values": UsageWarningLevelValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// WarningLevelForPercentage grades a usage percentage with inclusive thresholds:
// >=100 CRITICAL, >=90 HIGH, >=80 MEDIUM, >=60 LOW, else NONE. The usage
// record's IsApproachingLimit/IsAtSoftLimit predicates use strict > at 80/90.
func WarningLevelForPercentage(pct float64) UsageWarningLevel {
	switch {
	case pct >= 100:
		return UsageWarningLevelCritical
	case pct >= 90:
		return UsageWarningLevelHigh
	case pct >= 80:
		return UsageWarningLevelMedium
	case pct >= 60:
		return UsageWarningLevelLow
	default:
		return UsageWarningLevelNone
	}
}

// UsageFilter represents filters for usage tracking queries
type UsageFilter struct {
	*QueryFilter
	*TimeRangeFilter

	SubscriptionID string `json:"subscription_id,omitempty" form:"subscription_id"`
	// UserID filters by owning user
	UserID string `json:"user_id,omitempty" form:"user_id"`
	// Features filters by feature key
	Features []FeatureKey `json:"features,omitempty" form:"features"`
	// LimitExceeded filters records that are over their cap
	LimitExceeded *bool `json:"limit_exceeded,omitempty" form:"limit_exceeded"`
	// ResetDueBefore filters records whose reset date is before the given time
	ResetDueBefore *time.Time `json:"reset_due_before,omitempty" form:"reset_due_before"`
}

// NewUsageFilter creates a new UsageFilter with default values
func NewUsageFilter() *UsageFilter {
	return &UsageFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitUsageFilter creates a new UsageFilter with no pagination limits
func NewNoLimitUsageFilter() *UsageFilter {
	return &UsageFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the usage filter
func (f UsageFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}

	for _, feature := range f.Features {
		if err := feature.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *UsageFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *UsageFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetSort implements BaseFilter interface
func (f *UsageFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *UsageFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// GetStatus implements BaseFilter interface
func (f *UsageFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// IsUnlimited implements BaseFilter interface
func (f *UsageFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
