package types

import (
	"sort"
	"time"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPending          SubscriptionStatus = "PENDING"
	SubscriptionStatusActive           SubscriptionStatus = "ACTIVE"
	SubscriptionStatusTrial            SubscriptionStatus = "TRIAL"
	SubscriptionStatusExpired          SubscriptionStatus = "EXPIRED"
	SubscriptionStatusSuspended        SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusPaymentFailed    SubscriptionStatus = "PAYMENT_FAILED"
	SubscriptionStatusCancelled        SubscriptionStatus = "CANCELLED"
	SubscriptionStatusPaused           SubscriptionStatus = "PAUSED"
	SubscriptionStatusUpgradePending   SubscriptionStatus = "UPGRADE_PENDING"
	SubscriptionStatusDowngradePending SubscriptionStatus = "DOWNGRADE_PENDING"
	SubscriptionStatusTerminated       SubscriptionStatus = "TERMINATED"
)

var SubscriptionStatusValues = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusActive,
	SubscriptionStatusTrial,
	SubscriptionStatusExpired,
	SubscriptionStatusSuspended,
	SubscriptionStatusPaymentFailed,
	SubscriptionStatusCancelled,
	SubscriptionStatusPaused,
	SubscriptionStatusUpgradePending,
	SubscriptionStatusDowngradePending,
	SubscriptionStatusTerminated,
}

// subscriptionStatusTransitions is the directed transition graph of the subscription
// lifecycle. A transition is legal iff the target is in the source's allowed set; the
// check is pure set membership and never depends on how the subscription got here.
// TERMINATED is terminal and has no outgoing transitions.
var subscriptionStatusTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending: {
		SubscriptionStatusActive,
		SubscriptionStatusTrial,
		SubscriptionStatusSuspended,
		SubscriptionStatusPaymentFailed,
		SubscriptionStatusTerminated,
	},
	SubscriptionStatusActive: {
		SubscriptionStatusCancelled,
		SubscriptionStatusSuspended,
		SubscriptionStatusPaused,
		SubscriptionStatusPaymentFailed,
		SubscriptionStatusUpgradePending,
		SubscriptionStatusDowngradePending,
		SubscriptionStatusExpired,
	},
	SubscriptionStatusTrial: {
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
		SubscriptionStatusSuspended,
		SubscriptionStatusPaymentFailed,
		SubscriptionStatusExpired,
	},
	SubscriptionStatusExpired: {
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
		SubscriptionStatusTerminated,
	},
	SubscriptionStatusSuspended: {
		SubscriptionStatusActive,
		SubscriptionStatusTerminated,
	},
	SubscriptionStatusPaymentFailed: {
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
		SubscriptionStatusTerminated,
	},
	// CANCELLED keeps a reactivation window back to ACTIVE until termination.
	SubscriptionStatusCancelled: {
		SubscriptionStatusTerminated,
		SubscriptionStatusActive,
	},
	SubscriptionStatusPaused: {
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
		SubscriptionStatusTerminated,
	},
	SubscriptionStatusUpgradePending: {
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
	},
	SubscriptionStatusDowngradePending: {
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
	},
	SubscriptionStatusTerminated: {},
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	if !lo.Contains(SubscriptionStatusValues, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": SubscriptionStatusValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo returns true iff the transition graph allows moving to target
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	return lo.Contains(subscriptionStatusTransitions[s], target)
}

// AllowedTransitions returns the sorted set of legal targets from this status
func (s SubscriptionStatus) AllowedTransitions() []SubscriptionStatus {
	targets := make([]SubscriptionStatus, len(subscriptionStatusTransitions[s]))
	copy(targets, subscriptionStatusTransitions[s])
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// HasAccess returns true when the status grants feature access. EXPIRED and
// CANCELLED retain access during grace/notice periods; product has been asked to
// confirm that policy and until then it stands as-is.
func (s SubscriptionStatus) HasAccess() bool {
	switch s {
	case SubscriptionStatusActive,
		SubscriptionStatusTrial,
		SubscriptionStatusExpired,
		SubscriptionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsBillable returns true when recurring charges accrue in this status
func (s SubscriptionStatus) IsBillable() bool {
	return s == SubscriptionStatusActive
}

// CanUpgrade returns true when a tier upgrade may be initiated from this status
func (s SubscriptionStatus) CanUpgrade() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}

// CanDowngrade returns true when a tier downgrade may be initiated from this status
func (s SubscriptionStatus) CanDowngrade() bool {
	return s == SubscriptionStatusActive
}

// CanCancel returns true when the subscription may be cancelled from this status
func (s SubscriptionStatus) CanCancel() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrial, SubscriptionStatusPaused:
		return true
	default:
		return false
	}
}

// CanReactivate returns true when the subscription may be brought back to ACTIVE
func (s SubscriptionStatus) CanReactivate() bool {
	switch s {
	case SubscriptionStatusSuspended,
		SubscriptionStatusPaused,
		SubscriptionStatusExpired,
		SubscriptionStatusPaymentFailed:
		return true
	default:
		return false
	}
}

// RequiresPayment returns true when a successful payment is needed before the
// subscription can serve again
func (s SubscriptionStatus) RequiresPayment() bool {
	switch s {
	case SubscriptionStatusPending,
		SubscriptionStatusSuspended,
		SubscriptionStatusExpired,
		SubscriptionStatusPaymentFailed:
		return true
	default:
		return false
	}
}

// IsFinal returns true for terminal statuses with no outgoing transitions
func (s SubscriptionStatus) IsFinal() bool {
	return s == SubscriptionStatusTerminated
}

// NewInvalidTransitionError builds the failure returned for an illegal status change.
// Every caller reports it with the same structure: the source, the target, and the
// set of targets that would have been legal.
func NewInvalidTransitionError(from, to SubscriptionStatus) error {
	return ierr.NewError("invalid subscription status transition").
		WithHintf("Subscription cannot move from %s to %s", from, to).
		WithReportableDetails(map[string]any{
			"from":            from,
			"to":              to,
			"allowed_targets": from.AllowedTransitions(),
		}).
		Mark(ierr.ErrInvalidTransition)
}

// SubscriptionFilter represents filters for subscription queries
type SubscriptionFilter struct {
	*QueryFilter
	*TimeRangeFilter

	SubscriptionIDs []string `json:"subscription_ids,omitempty" form:"subscription_ids"`
	// UserID filters by owning user
	UserID string `json:"user_id,omitempty" form:"user_id"`
	// Tiers filters by subscription tier
	Tiers []SubscriptionTier `json:"tiers,omitempty" form:"tiers"`
	// SubscriptionStatus filters by lifecycle status
	SubscriptionStatus []SubscriptionStatus `json:"subscription_status,omitempty" form:"subscription_status"`
	// BillingCycles filters by billing cadence
	BillingCycles []BillingCycle `json:"billing_cycles,omitempty" form:"billing_cycles"`
	// ActiveAt filters subscriptions that have access at the given time
	ActiveAt *time.Time `json:"active_at,omitempty" form:"active_at"`
	// BillingDueBefore filters subscriptions whose next billing date is before the given time
	BillingDueBefore *time.Time `json:"billing_due_before,omitempty" form:"billing_due_before"`
}

// NewSubscriptionFilter creates a new SubscriptionFilter with default values
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitSubscriptionFilter creates a new SubscriptionFilter with no pagination limits
func NewNoLimitSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the subscription filter
func (f SubscriptionFilter) Validate() error {
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

	for _, status := range f.SubscriptionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}

	for _, tier := range f.Tiers {
		if err := tier.Validate(); err != nil {
			return err
		}
	}

	for _, cycle := range f.BillingCycles {
		if err := cycle.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *SubscriptionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *SubscriptionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetSort implements BaseFilter interface
func (f *SubscriptionFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *SubscriptionFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// GetStatus implements BaseFilter interface
func (f *SubscriptionFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// IsUnlimited implements BaseFilter interface
func (f *SubscriptionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
