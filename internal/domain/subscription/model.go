package subscription

import (
	"math"
	"time"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

// MaxFailedBillingAttempts is the number of consecutive billing failures
// tolerated before a subscription is suspended.
const MaxFailedBillingAttempts = 3

type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// UserID is the identifier of the account that owns the subscription
	UserID string `db:"user_id" json:"user_id"`

	// TierID is the catalog tier the subscription is on
	TierID types.SubscriptionTier `db:"tier_id" json:"tier_id"`

	// Status is the lifecycle status of the subscription
	Status types.SubscriptionStatus `db:"status" json:"status"`

	// BillingCycle is the cadence the subscription is charged on
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	// MonthlyPrice is the tier's monthly list price captured at the last tier change
	MonthlyPrice decimal.Decimal `db:"monthly_price" json:"monthly_price"`

	// BillingAmount is the effective per-cycle charge after cycle pricing and
	// promotion discount. Always recomputed from the catalog, never set by callers.
	BillingAmount decimal.Decimal `db:"billing_amount" json:"billing_amount"`

	// Currency is the currency of the subscription in lowercase 3 digit ISO codes
	Currency string `db:"currency" json:"currency"`

	// StartDate is the start date of the subscription
	StartDate time.Time `db:"start_date" json:"start_date"`

	// EndDate is the end date of the subscription
	EndDate *time.Time `db:"end_date" json:"end_date"`

	// NextBillingDate is when the next charge is due
	NextBillingDate *time.Time `db:"next_billing_date" json:"next_billing_date"`

	// TrialEndDate is when the trial period ends
	TrialEndDate *time.Time `db:"trial_end_date" json:"trial_end_date"`

	// FailedBillingAttempts counts consecutive failed charges
	FailedBillingAttempts int `db:"failed_billing_attempts" json:"failed_billing_attempts"`

	// AutoRenewal indicates whether the subscription renews at period end
	AutoRenewal bool `db:"auto_renewal" json:"auto_renewal"`

	// CancellationReason is the user-supplied reason for cancellation
	CancellationReason *string `db:"cancellation_reason" json:"cancellation_reason"`

	// CancelledAt is the date the subscription was cancelled
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at"`

	// PaymentGatewayCustomerID is the customer reference in the payment gateway
	PaymentGatewayCustomerID string `db:"payment_gateway_customer_id" json:"payment_gateway_customer_id"`

	// PaymentGatewayRef is the subscription reference in the payment gateway
	PaymentGatewayRef string `db:"payment_gateway_ref" json:"payment_gateway_ref"`

	// PromotionDiscount is the active promotion fraction in [0, 1)
	PromotionDiscount decimal.Decimal `db:"promotion_discount" json:"promotion_discount"`

	// PromotionCode is the code that granted the active promotion
	PromotionCode *string `db:"promotion_code" json:"promotion_code"`

	// ActivatedAt is when the subscription first became active
	ActivatedAt *time.Time `db:"activated_at" json:"activated_at"`

	// UpgradedAt is when the subscription last changed tier upward
	UpgradedAt *time.Time `db:"upgraded_at" json:"upgraded_at"`

	// LastBilledAt is when the subscription was last successfully charged
	LastBilledAt *time.Time `db:"last_billed_at" json:"last_billed_at"`

	// Version is the optimistic concurrency counter, bumped on every update
	Version int64 `db:"version" json:"version"`

	// Metadata holds unstructured key-value pairs attached to the subscription
	Metadata types.Metadata `db:"metadata" json:"metadata"`

	types.BaseModel
}

// HasAccess returns true if the subscription grants access to paid features.
func (s *Subscription) HasAccess() bool {
	return s.Status.HasAccess()
}

// IsInTrial returns true if the subscription is trialing as of now.
func (s *Subscription) IsInTrial(now time.Time) bool {
	if s.Status != types.SubscriptionStatusTrial {
		return false
	}
	return s.TrialEndDate != nil && now.Before(*s.TrialEndDate)
}

// TrialDaysRemaining returns whole days left in the trial, rounding partial
// days up. Zero when not trialing or the trial has lapsed.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if !s.IsInTrial(now) {
		return 0
	}
	return int(math.Ceil(s.TrialEndDate.Sub(now).Hours() / 24))
}

// HasPromotion returns true if a promotion discount is in effect.
func (s *Subscription) HasPromotion() bool {
	return s.PromotionDiscount.GreaterThan(decimal.Zero)
}

// ShouldSuspendForNonPayment returns true once failed billing attempts reach
// the suspension threshold.
func (s *Subscription) ShouldSuspendForNonPayment() bool {
	return s.FailedBillingAttempts >= MaxFailedBillingAttempts
}

// Copy returns an independent copy of the subscription.
func (s *Subscription) Copy() *Subscription {
	out := *s

	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		ts := *t
		return &ts
	}

	out.EndDate = copyTime(s.EndDate)
	out.NextBillingDate = copyTime(s.NextBillingDate)
	out.TrialEndDate = copyTime(s.TrialEndDate)
	out.CancelledAt = copyTime(s.CancelledAt)
	out.ActivatedAt = copyTime(s.ActivatedAt)
	out.UpgradedAt = copyTime(s.UpgradedAt)
	out.LastBilledAt = copyTime(s.LastBilledAt)

	if s.CancellationReason != nil {
		reason := *s.CancellationReason
		out.CancellationReason = &reason
	}
	if s.PromotionCode != nil {
		code := *s.PromotionCode
		out.PromotionCode = &code
	}
	if s.Metadata != nil {
		out.Metadata = make(types.Metadata, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}

	return &out
}

func (s *Subscription) Validate() error {
	if s.ID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	if s.UserID == "" {
		return ierr.NewError("user id is required").
			WithHint("User ID is required").
			Mark(ierr.ErrValidation)
	}

	if err := s.TierID.Validate(); err != nil {
		return err
	}

	if err := s.Status.Validate(); err != nil {
		return err
	}

	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}

	if s.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}

	if s.MonthlyPrice.IsNegative() {
		return ierr.NewError("monthly price must be non negative").
			WithHint("Monthly price cannot be negative").
			WithReportableDetails(map[string]interface{}{
				"monthly_price": s.MonthlyPrice,
			}).
			Mark(ierr.ErrValidation)
	}

	if s.BillingAmount.IsNegative() {
		return ierr.NewError("billing amount must be non negative").
			WithHint("Billing amount cannot be negative").
			WithReportableDetails(map[string]interface{}{
				"billing_amount": s.BillingAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	if s.PromotionDiscount.IsNegative() || s.PromotionDiscount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ierr.NewError("promotion discount out of range").
			WithHint("Promotion discount must be at least 0 and less than 1").
			WithReportableDetails(map[string]interface{}{
				"promotion_discount": s.PromotionDiscount,
			}).
			Mark(ierr.ErrValidation)
	}

	if s.FailedBillingAttempts < 0 {
		return ierr.NewError("failed billing attempts must be non negative").
			WithHint("Failed billing attempts cannot be negative").
			Mark(ierr.ErrValidation)
	}

	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return ierr.NewError("end date must be after start date").
			WithHint("End date must be after start date").
			Mark(ierr.ErrValidation)
	}

	return nil
}
