// Package history projects subscription changes into an append-only audit
// trail. Rows are never updated after creation.
package history

import (
	"fmt"
	"time"

	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

type SubscriptionHistory struct {
	// ID is the unique identifier for the history row
	ID string `db:"id" json:"id"`

	// SubscriptionID is the subscription the change belongs to
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// UserID is the identifier of the account that owns the subscription
	UserID string `db:"user_id" json:"user_id"`

	// ChangeType classifies the recorded change
	ChangeType types.ChangeType `db:"change_type" json:"change_type"`

	// Initiator identifies who or what made the change
	Initiator types.ChangeInitiator `db:"initiator" json:"initiator"`

	// OldTier and NewTier snapshot the tier around the change
	OldTier *types.SubscriptionTier `db:"old_tier" json:"old_tier"`
	NewTier *types.SubscriptionTier `db:"new_tier" json:"new_tier"`

	// OldStatus and NewStatus snapshot the lifecycle status around the change
	OldStatus *types.SubscriptionStatus `db:"old_status" json:"old_status"`
	NewStatus *types.SubscriptionStatus `db:"new_status" json:"new_status"`

	// OldBillingCycle and NewBillingCycle snapshot the cadence around the change
	OldBillingCycle *types.BillingCycle `db:"old_billing_cycle" json:"old_billing_cycle"`
	NewBillingCycle *types.BillingCycle `db:"new_billing_cycle" json:"new_billing_cycle"`

	// OldMonthlyPrice and NewMonthlyPrice snapshot the list price around the change
	OldMonthlyPrice *decimal.Decimal `db:"old_monthly_price" json:"old_monthly_price"`
	NewMonthlyPrice *decimal.Decimal `db:"new_monthly_price" json:"new_monthly_price"`

	// OldBillingAmount and NewBillingAmount snapshot the effective charge around the change
	OldBillingAmount *decimal.Decimal `db:"old_billing_amount" json:"old_billing_amount"`
	NewBillingAmount *decimal.Decimal `db:"new_billing_amount" json:"new_billing_amount"`

	// Reason is free text supplied by the initiator
	Reason string `db:"reason" json:"reason"`

	// EffectiveAt is when the change took effect
	EffectiveAt time.Time `db:"effective_at" json:"effective_at"`

	// Metadata holds unstructured key-value pairs attached to the row
	Metadata types.Metadata `db:"metadata" json:"metadata"`

	types.BaseModel
}

// NewFromSnapshots builds a history row from the subscription state before
// and after a change. oldSub may be nil for creation events.
func NewFromSnapshots(oldSub, newSub *subscription.Subscription, changeType types.ChangeType, initiator types.ChangeInitiator, reason string, now time.Time) (*SubscriptionHistory, error) {
	if newSub == nil {
		return nil, ierr.NewError("new snapshot is required").
			WithHint("A history row needs the post-change subscription state").
			Mark(ierr.ErrValidation)
	}

	h := &SubscriptionHistory{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_HISTORY),
		SubscriptionID:   newSub.ID,
		UserID:           newSub.UserID,
		ChangeType:       changeType,
		Initiator:        initiator,
		NewTier:          &newSub.TierID,
		NewStatus:        &newSub.Status,
		NewBillingCycle:  &newSub.BillingCycle,
		NewMonthlyPrice:  &newSub.MonthlyPrice,
		NewBillingAmount: &newSub.BillingAmount,
		Reason:           reason,
		EffectiveAt:      now,
		BaseModel: types.BaseModel{
			Status:    types.StatusPublished,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if oldSub != nil {
		h.OldTier = &oldSub.TierID
		h.OldStatus = &oldSub.Status
		h.OldBillingCycle = &oldSub.BillingCycle
		h.OldMonthlyPrice = &oldSub.MonthlyPrice
		h.OldBillingAmount = &oldSub.BillingAmount
	}

	return h, nil
}

// IsUpgrade returns true when the change raised the tier, either by its
// recorded type or by comparing the tier snapshots.
func (h *SubscriptionHistory) IsUpgrade() bool {
	if h.ChangeType == types.ChangeTypeUpgraded {
		return true
	}
	if h.OldTier != nil && h.NewTier != nil {
		return h.OldTier.IsUpgradeTo(*h.NewTier)
	}
	return false
}

// IsDowngrade returns true when the change lowered the tier.
func (h *SubscriptionHistory) IsDowngrade() bool {
	if h.ChangeType == types.ChangeTypeDowngraded {
		return true
	}
	if h.OldTier != nil && h.NewTier != nil {
		return h.OldTier.IsDowngradeTo(*h.NewTier)
	}
	return false
}

// IsBillingCycleChange returns true when the charging cadence changed.
func (h *SubscriptionHistory) IsBillingCycleChange() bool {
	if h.ChangeType == types.ChangeTypeBillingCycleChanged {
		return true
	}
	if h.OldBillingCycle != nil && h.NewBillingCycle != nil {
		return *h.OldBillingCycle != *h.NewBillingCycle
	}
	return false
}

// IsPriceChange returns true when the effective charge changed. Amounts are
// compared by value, not by pointer.
func (h *SubscriptionHistory) IsPriceChange() bool {
	if h.ChangeType == types.ChangeTypePriceChanged {
		return true
	}
	if h.OldBillingAmount != nil && h.NewBillingAmount != nil {
		return !h.OldBillingAmount.Equal(*h.NewBillingAmount)
	}
	return false
}

// RevenueImpact returns the change in effective charge, new minus old. Zero
// when either snapshot is absent.
func (h *SubscriptionHistory) RevenueImpact() decimal.Decimal {
	if h.OldBillingAmount == nil || h.NewBillingAmount == nil {
		return decimal.Zero
	}
	return h.NewBillingAmount.Sub(*h.OldBillingAmount)
}

// AffectsBilling returns true for change types that alter the charge.
func (h *SubscriptionHistory) AffectsBilling() bool {
	return h.ChangeType.AffectsBilling()
}

// IsCancellation returns true when the change ended the subscription.
func (h *SubscriptionHistory) IsCancellation() bool {
	switch h.ChangeType {
	case types.ChangeTypeCancelled, types.ChangeTypeTerminated:
		return true
	}
	if h.NewStatus != nil {
		return *h.NewStatus == types.SubscriptionStatusCancelled ||
			*h.NewStatus == types.SubscriptionStatusTerminated
	}
	return false
}

// IsReactivation returns true when the change restored feature access.
func (h *SubscriptionHistory) IsReactivation() bool {
	switch h.ChangeType {
	case types.ChangeTypeReactivated, types.ChangeTypeResumed:
		return true
	}
	if h.OldStatus != nil && h.NewStatus != nil {
		return !h.OldStatus.HasAccess() && h.NewStatus.HasAccess()
	}
	return false
}

// ChangeDescription renders a human-readable summary of the change, with the
// free-text reason appended when present.
func (h *SubscriptionHistory) ChangeDescription() string {
	desc := h.baseDescription()
	if h.Reason != "" {
		desc = fmt.Sprintf("%s: %s", desc, h.Reason)
	}
	return desc
}

func (h *SubscriptionHistory) baseDescription() string {
	switch h.ChangeType {
	case types.ChangeTypeUpgraded:
		if h.OldTier != nil && h.NewTier != nil {
			return fmt.Sprintf("Upgraded from %s to %s", *h.OldTier, *h.NewTier)
		}
		return "Subscription upgraded"
	case types.ChangeTypeDowngraded:
		if h.OldTier != nil && h.NewTier != nil {
			return fmt.Sprintf("Downgraded from %s to %s", *h.OldTier, *h.NewTier)
		}
		return "Subscription downgraded"
	case types.ChangeTypeBillingCycleChanged:
		if h.OldBillingCycle != nil && h.NewBillingCycle != nil {
			return fmt.Sprintf("Billing cycle changed from %s to %s", *h.OldBillingCycle, *h.NewBillingCycle)
		}
		return "Billing cycle changed"
	case types.ChangeTypeCreated:
		return "Subscription created"
	case types.ChangeTypeActivated:
		return "Subscription activated"
	case types.ChangeTypeSuspended:
		return "Subscription suspended"
	case types.ChangeTypeCancelled:
		return "Subscription cancelled"
	case types.ChangeTypeTerminated:
		return "Subscription terminated"
	case types.ChangeTypeReactivated:
		return "Subscription reactivated"
	case types.ChangeTypePaused:
		return "Subscription paused"
	case types.ChangeTypeResumed:
		return "Subscription resumed"
	case types.ChangeTypeTrialStarted:
		return "Trial started"
	case types.ChangeTypeTrialEnded:
		return "Trial ended"
	case types.ChangeTypeExpired:
		return "Subscription expired"
	case types.ChangeTypePaymentFailed:
		return "Payment attempt failed"
	case types.ChangeTypePaymentSucceeded:
		return "Payment recorded"
	case types.ChangeTypeAutoRenewalEnabled:
		return "Auto renewal enabled"
	case types.ChangeTypeAutoRenewalDisabled:
		return "Auto renewal disabled"
	case types.ChangeTypePriceChanged:
		return "Price changed"
	case types.ChangeTypePromotionApplied:
		return "Promotion applied"
	case types.ChangeTypePromotionRemoved:
		return "Promotion removed"
	default:
		return fmt.Sprintf("Subscription changed (%s)", h.ChangeType)
	}
}

func (h *SubscriptionHistory) Validate() error {
	if h.ID == "" {
		return ierr.NewError("history id is required").
			WithHint("History row ID is required").
			Mark(ierr.ErrValidation)
	}

	if h.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	if h.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User ID is required").
			Mark(ierr.ErrValidation)
	}

	if err := h.ChangeType.Validate(); err != nil {
		return err
	}

	if err := h.Initiator.Validate(); err != nil {
		return err
	}

	return nil
}
