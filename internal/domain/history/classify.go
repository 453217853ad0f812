package history

import (
	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
)

// DeriveChangeType classifies the difference between two subscription
// snapshots. Status movement wins over tier direction, which wins over cycle,
// promotion, auto-renewal and price differences. A nil oldSub is a creation.
func DeriveChangeType(oldSub, newSub *subscription.Subscription) (types.ChangeType, error) {
	if newSub == nil {
		return "", ierr.NewError("new snapshot is required").
			WithHint("Classification needs the post-change subscription state").
			Mark(ierr.ErrValidation)
	}

	if oldSub == nil {
		return types.ChangeTypeCreated, nil
	}

	if oldSub.Status != newSub.Status {
		if ct, ok := classifyStatusChange(oldSub.Status, newSub.Status); ok {
			return ct, nil
		}
	}

	if oldSub.TierID != newSub.TierID {
		if oldSub.TierID.IsUpgradeTo(newSub.TierID) {
			return types.ChangeTypeUpgraded, nil
		}
		return types.ChangeTypeDowngraded, nil
	}

	if oldSub.BillingCycle != newSub.BillingCycle {
		return types.ChangeTypeBillingCycleChanged, nil
	}

	if oldSub.HasPromotion() != newSub.HasPromotion() || !oldSub.PromotionDiscount.Equal(newSub.PromotionDiscount) {
		if newSub.HasPromotion() {
			return types.ChangeTypePromotionApplied, nil
		}
		return types.ChangeTypePromotionRemoved, nil
	}

	if oldSub.AutoRenewal != newSub.AutoRenewal {
		if newSub.AutoRenewal {
			return types.ChangeTypeAutoRenewalEnabled, nil
		}
		return types.ChangeTypeAutoRenewalDisabled, nil
	}

	if !oldSub.BillingAmount.Equal(newSub.BillingAmount) {
		return types.ChangeTypePriceChanged, nil
	}

	return "", ierr.NewError("no classifiable change between snapshots").
		WithHint("The two subscription snapshots are equivalent").
		WithReportableDetails(map[string]interface{}{
			"subscription_id": newSub.ID,
		}).
		Mark(ierr.ErrValidation)
}

func classifyStatusChange(from, to types.SubscriptionStatus) (types.ChangeType, bool) {
	switch to {
	case types.SubscriptionStatusTerminated:
		return types.ChangeTypeTerminated, true
	case types.SubscriptionStatusCancelled:
		return types.ChangeTypeCancelled, true
	case types.SubscriptionStatusSuspended:
		return types.ChangeTypeSuspended, true
	case types.SubscriptionStatusPaused:
		return types.ChangeTypePaused, true
	case types.SubscriptionStatusPaymentFailed:
		return types.ChangeTypePaymentFailed, true
	case types.SubscriptionStatusTrial:
		return types.ChangeTypeTrialStarted, true
	case types.SubscriptionStatusExpired:
		if from == types.SubscriptionStatusTrial {
			return types.ChangeTypeTrialEnded, true
		}
		return types.ChangeTypeExpired, true
	case types.SubscriptionStatusUpgradePending:
		return types.ChangeTypeUpgraded, true
	case types.SubscriptionStatusDowngradePending:
		return types.ChangeTypeDowngraded, true
	case types.SubscriptionStatusActive:
		switch from {
		case types.SubscriptionStatusPending, types.SubscriptionStatusTrial:
			return types.ChangeTypeActivated, true
		case types.SubscriptionStatusPaused:
			return types.ChangeTypeResumed, true
		case types.SubscriptionStatusUpgradePending:
			return types.ChangeTypeUpgraded, true
		case types.SubscriptionStatusDowngradePending:
			return types.ChangeTypeDowngraded, true
		default:
			return types.ChangeTypeReactivated, true
		}
	default:
		// nothing legally transitions back to PENDING
		return "", false
	}
}
