// Package usage tracks per-feature consumption for a subscription over a
// rolling reset period and enforces tier limits.
package usage

import (
	"math"
	"time"

	"github.com/finbase/subcore/internal/domain/tier"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
)

type UsageTracking struct {
	// ID is the unique identifier for the usage record
	ID string `db:"id" json:"id"`

	// SubscriptionID is the subscription the usage is counted against
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// UserID is the identifier of the account that owns the subscription
	UserID string `db:"user_id" json:"user_id"`

	// Feature is the metered feature key
	Feature types.FeatureKey `db:"feature" json:"feature"`

	// UsageCount is the consumption recorded in the current period
	UsageCount int64 `db:"usage_count" json:"usage_count"`

	// UsageLimit is the cap for the period, -1 for unlimited
	UsageLimit int64 `db:"usage_limit" json:"usage_limit"`

	// PeriodStart is the start of the current tracking period
	PeriodStart time.Time `db:"period_start" json:"period_start"`

	// PeriodEnd is the end of the current tracking period
	PeriodEnd time.Time `db:"period_end" json:"period_end"`

	// ResetDate is when the counters are next due to reset
	ResetDate time.Time `db:"reset_date" json:"reset_date"`

	// ResetFrequencyDays is the length of a tracking period in days
	ResetFrequencyDays int `db:"reset_frequency_days" json:"reset_frequency_days"`

	// LimitExceeded is true once the count has gone over the cap this period
	LimitExceeded bool `db:"limit_exceeded" json:"limit_exceeded"`

	// ExceededCount is the number of increments that landed over the cap this period
	ExceededCount int64 `db:"exceeded_count" json:"exceeded_count"`

	// FirstExceededAt is when the cap was first breached this period
	FirstExceededAt *time.Time `db:"first_exceeded_at" json:"first_exceeded_at"`

	types.BaseModel
}

// NewUsageTracking creates a default usage row for a (subscription, feature)
// pair: zero count, period anchored to the first day of now's month.
func NewUsageTracking(subscriptionID, userID string, feature types.FeatureKey, limit int64, resetDays int, now time.Time) *UsageTracking {
	anchor := types.MonthAnchor(now)
	periodEnd := anchor.AddDate(0, 0, resetDays)

	return &UsageTracking{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_TRACKING),
		SubscriptionID:     subscriptionID,
		UserID:             userID,
		Feature:            feature,
		UsageCount:         0,
		UsageLimit:         limit,
		PeriodStart:        anchor,
		PeriodEnd:          periodEnd,
		ResetDate:          periodEnd,
		ResetFrequencyDays: resetDays,
		BaseModel: types.BaseModel{
			Status:    types.StatusPublished,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// IsUnlimited returns true if the record has no cap.
func (u *UsageTracking) IsUnlimited() bool {
	return u.UsageLimit == tier.Unlimited
}

// IsWithinLimit returns true while the count is strictly under the cap.
func (u *UsageTracking) IsWithinLimit() bool {
	if u.IsUnlimited() {
		return true
	}
	return u.UsageCount < u.UsageLimit
}

// RemainingUsage returns how much consumption is left in the period.
// Unlimited records report math.MaxInt64.
func (u *UsageTracking) RemainingUsage() int64 {
	if u.IsUnlimited() {
		return math.MaxInt64
	}
	remaining := u.UsageLimit - u.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsagePercentage returns consumption as a percentage of the cap, clamped to
// 100. Unlimited and zero-limit records report 0.
func (u *UsageTracking) UsagePercentage() float64 {
	if u.IsUnlimited() || u.UsageLimit == 0 {
		return 0.0
	}
	pct := 100.0 * float64(u.UsageCount) / float64(u.UsageLimit)
	return math.Min(100.0, pct)
}

// IncrementUsage adds amount to the count and reports whether the result
// stayed within the cap. Usage is recorded even when it overshoots so the
// historical count stays accurate. Landing exactly on the cap is not a
// breach. The first breaching call in a period stamps FirstExceededAt; every
// breaching call bumps ExceededCount.
func (u *UsageTracking) IncrementUsage(amount int64, now time.Time) bool {
	u.UsageCount += amount
	u.UpdatedAt = now

	if u.IsUnlimited() {
		return true
	}

	if u.UsageCount > u.UsageLimit {
		u.LimitExceeded = true
		u.ExceededCount++
		if u.FirstExceededAt == nil {
			u.FirstExceededAt = &now
		}
		return false
	}

	return true
}

// ResetUsage zeroes the counters and re-anchors the period at now. Calling it
// again with the same now is a no-op in effect.
func (u *UsageTracking) ResetUsage(now time.Time) {
	u.UsageCount = 0
	u.LimitExceeded = false
	u.ExceededCount = 0
	u.FirstExceededAt = nil
	u.PeriodStart = now
	u.PeriodEnd = now.AddDate(0, 0, u.ResetFrequencyDays)
	u.ResetDate = u.PeriodEnd
	u.UpdatedAt = now
}

// UpdateLimit changes the cap and re-evaluates LimitExceeded against the
// existing count without incrementing anything. A downgrade can flip a
// previously fine record into an exceeded one.
func (u *UsageTracking) UpdateLimit(newLimit int64) {
	u.UsageLimit = newLimit
	u.LimitExceeded = !u.IsUnlimited() && u.UsageCount > u.UsageLimit
}

// WarningLevel grades the record by its usage percentage.
func (u *UsageTracking) WarningLevel() types.UsageWarningLevel {
	return types.WarningLevelForPercentage(u.UsagePercentage())
}

// IsApproachingLimit returns true strictly above 80 percent.
func (u *UsageTracking) IsApproachingLimit() bool {
	return u.UsagePercentage() > 80.0
}

// IsAtSoftLimit returns true strictly above 90 percent.
func (u *UsageTracking) IsAtSoftLimit() bool {
	return u.UsagePercentage() > 90.0
}

// Copy returns an independent copy of the record.
func (u *UsageTracking) Copy() *UsageTracking {
	out := *u
	if u.FirstExceededAt != nil {
		ts := *u.FirstExceededAt
		out.FirstExceededAt = &ts
	}
	return &out
}

func (u *UsageTracking) Validate() error {
	if u.ID == "" {
		return ierr.NewError("usage record id is required").
			WithHint("Usage record ID is required").
			Mark(ierr.ErrValidation)
	}

	if u.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	if u.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User ID is required").
			Mark(ierr.ErrValidation)
	}

	if err := u.Feature.Validate(); err != nil {
		return err
	}

	if u.UsageCount < 0 {
		return ierr.NewError("usage count must be non negative").
			WithHint("Usage count cannot be negative").
			WithReportableDetails(map[string]interface{}{
				"usage_count": u.UsageCount,
			}).
			Mark(ierr.ErrValidation)
	}

	if err := tier.ValidateLimit(u.UsageLimit); err != nil {
		return err
	}

	if u.ResetFrequencyDays <= 0 {
		return ierr.NewError("reset frequency must be positive").
			WithHint("Reset frequency days must be at least 1").
			WithReportableDetails(map[string]interface{}{
				"reset_frequency_days": u.ResetFrequencyDays,
			}).
			Mark(ierr.ErrValidation)
	}

	if u.PeriodEnd.Before(u.PeriodStart) {
		return ierr.NewError("period end must be after period start").
			WithHint("Period end must be after period start").
			Mark(ierr.ErrValidation)
	}

	return nil
}
