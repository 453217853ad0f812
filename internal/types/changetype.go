package types

import (
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
)

// ChangeType classifies one recorded subscription change
type ChangeType string

const (
	ChangeTypeCreated             ChangeType = "CREATED"
	ChangeTypeActivated           ChangeType = "ACTIVATED"
	ChangeTypeUpgraded            ChangeType = "UPGRADED"
	ChangeTypeDowngraded          ChangeType = "DOWNGRADED"
	ChangeTypeBillingCycleChanged ChangeType = "BILLING_CYCLE_CHANGED"
	ChangeTypeSuspended           ChangeType = "SUSPENDED"
	ChangeTypeCancelled           ChangeType = "CANCELLED"
	ChangeTypeTerminated          ChangeType = "TERMINATED"
	ChangeTypeReactivated         ChangeType = "REACTIVATED"
	ChangeTypePaused              ChangeType = "PAUSED"
	ChangeTypeResumed             ChangeType = "RESUMED"
	ChangeTypeTrialStarted        ChangeType = "TRIAL_STARTED"
	ChangeTypeTrialEnded          ChangeType = "TRIAL_ENDED"
	ChangeTypeExpired             ChangeType = "EXPIRED"
	ChangeTypePaymentFailed       ChangeType = "PAYMENT_FAILED"
	ChangeTypePaymentSucceeded    ChangeType = "PAYMENT_SUCCEEDED"
	ChangeTypeAutoRenewalEnabled  ChangeType = "AUTO_RENEWAL_ENABLED"
	ChangeTypeAutoRenewalDisabled ChangeType = "AUTO_RENEWAL_DISABLED"
	ChangeTypePriceChanged        ChangeType = "PRICE_CHANGED"
	ChangeTypePromotionApplied    ChangeType = "PROMOTION_APPLIED"
	ChangeTypePromotionRemoved    ChangeType = "PROMOTION_REMOVED"
)

var ChangeTypeValues = []ChangeType{
	ChangeTypeCreated,
	ChangeTypeActivated,
	ChangeTypeUpgraded,
	ChangeTypeDowngraded,
	ChangeTypeBillingCycleChanged,
	ChangeTypeSuspended,
	ChangeTypeCancelled,
	ChangeTypeTerminated,
	ChangeTypeReactivated,
	ChangeTypePaused,
	ChangeTypeResumed,
	ChangeTypeTrialStarted,
	ChangeTypeTrialEnded,
	ChangeTypeExpired,
	ChangeTypePaymentFailed,
	ChangeTypePaymentSucceeded,
	ChangeTypeAutoRenewalEnabled,
	ChangeTypeAutoRenewalDisabled,
	ChangeTypePriceChanged,
	ChangeTypePromotionApplied,
	ChangeTypePromotionRemoved,
}

func (c ChangeType) String() string {
	return string(c)
}

func (c ChangeType) Validate() error {
	if !lo.Contains(ChangeTypeValues, c) {
		return ierr.NewError("invalid change type").
			WithHint("Invalid subscription change type").
			WithReportableDetails(map[string]any{
				"change_type":    c,
				"allowed_values": ChangeTypeValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AffectsBilling returns true for change types that alter what the customer is charged
func (c ChangeType) AffectsBilling() bool {
	switch c {
	case ChangeTypeUpgraded,
		ChangeTypeDowngraded,
		ChangeTypeBillingCycleChanged,
		ChangeTypePriceChanged,
		ChangeTypePromotionApplied,
		ChangeTypePromotionRemoved:
		return true
	default:
		return false
	}
}

// ChangeInitiator identifies who or what initiated a subscription change
type ChangeInitiator string

const (
	ChangeInitiatorUser           ChangeInitiator = "USER"
	ChangeInitiatorSystem         ChangeInitiator = "SYSTEM"
	ChangeInitiatorAdmin          ChangeInitiator = "ADMIN"
	ChangeInitiatorPaymentGateway ChangeInitiator = "PAYMENT_GATEWAY"
	ChangeInitiatorScheduledTask  ChangeInitiator = "SCHEDULED_TASK"
)

var ChangeInitiatorValues = []ChangeInitiator{
	ChangeInitiatorUser,
	ChangeInitiatorSystem,
	ChangeInitiatorAdmin,
	ChangeInitiatorPaymentGateway,
	ChangeInitiatorScheduledTask,
}

func (i ChangeInitiator) String() string {
	return string(i)
}

func (i ChangeInitiator) Validate() error {
	if !lo.Contains(ChangeInitiatorValues, i) {
		return ierr.NewError("invalid change initiator").
			WithHint("Invalid subscription change initiator").
			WithReportableDetails(map[string]any{
				"initiator":      i,
				"allowed_values": ChangeInitiatorValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
