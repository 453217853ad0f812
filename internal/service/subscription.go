package service

import (
	"context"
	"strings"
	"time"

	"github.com/finbase/subcore/internal/domain/history"
	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/finbase/subcore/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SubscriptionService drives the subscription lifecycle. Every mutation
// validates the status change through the rules engine, recomputes the
// billing amount when the change affects billing, persists the aggregate
// (the repository enforces the version check), and appends an audit row.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*subscription.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error)

	ActivateSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	StartTrial(ctx context.Context, id string, trialDays int) (*subscription.Subscription, error)
	CancelSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error)
	SuspendSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error)
	PauseSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	ResumeSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	ExpireSubscription(ctx context.Context, id string) (*subscription.Subscription, error)
	TerminateSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error)
	ReactivateSubscription(ctx context.Context, id string) (*subscription.Subscription, error)

	RecordPaymentFailure(ctx context.Context, id string) (*subscription.Subscription, error)
	RecordPaymentRecovered(ctx context.Context, id string) (*subscription.Subscription, error)

	ChangeTier(ctx context.Context, id string, newTier types.SubscriptionTier) (*subscription.Subscription, error)
	ChangeBillingCycle(ctx context.Context, id string, newCycle types.BillingCycle) (*subscription.Subscription, error)
	ApplyPromotion(ctx context.Context, id string, code string) (*subscription.Subscription, error)
	RemovePromotion(ctx context.Context, id string) (*subscription.Subscription, error)
	SetAutoRenewal(ctx context.Context, id string, enabled bool) (*subscription.Subscription, error)
}

// CreateSubscriptionRequest carries the caller-supplied fields of a new
// subscription. Prices are never accepted from the caller; they are resolved
// from the tier catalog.
type CreateSubscriptionRequest struct {
	UserID                   string                 `json:"user_id" validate:"required"`
	TierID                   types.SubscriptionTier `json:"tier_id" validate:"required"`
	BillingCycle             types.BillingCycle     `json:"billing_cycle" validate:"required"`
	Currency                 string                 `json:"currency,omitempty"`
	AutoRenewal              bool                   `json:"auto_renewal"`
	PaymentGatewayCustomerID string                 `json:"payment_gateway_customer_id,omitempty"`
	Metadata                 types.Metadata         `json:"metadata,omitempty"`
}

func (r CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.TierID.Validate(); err != nil {
		return err
	}
	return r.BillingCycle.Validate()
}

func (r CreateSubscriptionRequest) toSubscription(ctx context.Context, now time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                       types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:                   r.UserID,
		TierID:                   r.TierID,
		Status:                   types.SubscriptionStatusPending,
		BillingCycle:             r.BillingCycle,
		Currency:                 strings.ToLower(r.Currency),
		StartDate:                now,
		AutoRenewal:              r.AutoRenewal,
		PaymentGatewayCustomerID: r.PaymentGatewayCustomerID,
		Version:                  1,
		Metadata:                 r.Metadata,
		BaseModel:                types.GetDefaultBaseModel(ctx),
	}
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*subscription.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.Currency == "" {
		req.Currency = s.Config.Billing.Currency
	}

	sub := req.toSubscription(ctx, s.Engine.Now())
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, nil, sub, types.ChangeTypeCreated, types.ChangeInitiatorUser, "")

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"tier", sub.TierID,
		"billing_cycle", sub.BillingCycle,
		"billing_amount", sub.BillingAmount)

	return sub, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.SubRepo.Get(ctx, id)
}

func (s *subscriptionService) GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	if userID == "" {
		return nil, ierr.NewError("user_id is required").
			WithHint("User lookups need a user id").
			Mark(ierr.ErrValidation)
	}
	return s.SubRepo.GetByUserID(ctx, userID)
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.SubRepo.List(ctx, filter)
}

// ActivateSubscription turns a pending or trialing subscription into a paying
// one: the first charge is recorded and the next billing date is scheduled.
func (s *subscriptionService) ActivateSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.ActivatedAt = &now
	sub.LastBilledAt = &now
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(sub.BillingCycle, now))

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeActivated, types.ChangeInitiatorUser, "")

	s.Logger.Infow("activated subscription",
		"subscription_id", sub.ID,
		"tier", sub.TierID,
		"next_billing_date", sub.NextBillingDate)

	return sub, nil
}

// StartTrial moves a pending subscription into its trial window. No charge is
// scheduled until the trial converts.
func (s *subscriptionService) StartTrial(ctx context.Context, id string, trialDays int) (*subscription.Subscription, error) {
	if trialDays <= 0 {
		return nil, ierr.NewError("trial length must be positive").
			WithHint("Trials need at least one day").
			WithReportableDetails(map[string]interface{}{
				"trial_days": trialDays,
			}).
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusTrial); err != nil {
		return nil, err
	}

	trialEnd := s.Engine.Now().AddDate(0, 0, trialDays)
	sub.TrialEndDate = &trialEnd

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeTrialStarted, types.ChangeInitiatorUser, "")

	s.Logger.Infow("started trial",
		"subscription_id", sub.ID,
		"tier", sub.TierID,
		"trial_end_date", trialEnd)

	return sub, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.CancelledAt = &now
	if reason != "" {
		sub.CancellationReason = &reason
	}
	sub.NextBillingDate = nil
	sub.AutoRenewal = false

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeCancelled, types.ChangeInitiatorUser, reason)

	s.Logger.Infow("cancelled subscription",
		"subscription_id", sub.ID,
		"reason", reason)

	return sub, nil
}

func (s *subscriptionService) SuspendSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusSuspended); err != nil {
		return nil, err
	}
	sub.NextBillingDate = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeSuspended, types.ChangeInitiatorAdmin, reason)

	s.Logger.Warnw("suspended subscription",
		"subscription_id", sub.ID,
		"reason", reason)

	return sub, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusPaused); err != nil {
		return nil, err
	}
	sub.NextBillingDate = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypePaused, types.ChangeInitiatorUser, "")

	s.Logger.Infow("paused subscription", "subscription_id", sub.ID)

	return sub, nil
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status != types.SubscriptionStatusPaused {
		return nil, ierr.NewError("subscription is not paused").
			WithHint("Only paused subscriptions can be resumed").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"status":          sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(sub.BillingCycle, now))

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeResumed, types.ChangeInitiatorUser, "")

	s.Logger.Infow("resumed subscription", "subscription_id", sub.ID)

	return sub, nil
}

// ExpireSubscription marks the subscription expired at the end of its paid
// period. Expired subscriptions retain feature access during the grace window.
func (s *subscriptionService) ExpireSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	changeType := types.ChangeTypeExpired
	if sub.Status == types.SubscriptionStatusTrial {
		changeType = types.ChangeTypeTrialEnded
	}

	if err := s.transition(sub, types.SubscriptionStatusExpired); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.EndDate = &now
	sub.NextBillingDate = nil

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, changeType, types.ChangeInitiatorSystem, "")

	s.Logger.Infow("expired subscription",
		"subscription_id", sub.ID,
		"change_type", changeType)

	return sub, nil
}

func (s *subscriptionService) TerminateSubscription(ctx context.Context, id string, reason string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusTerminated); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.EndDate = &now
	sub.NextBillingDate = nil
	sub.AutoRenewal = false

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeTerminated, types.ChangeInitiatorAdmin, reason)

	s.Logger.Infow("terminated subscription",
		"subscription_id", sub.ID,
		"reason", reason)

	return sub, nil
}

// ReactivateSubscription brings a suspended, paused, expired, payment-failed
// or recently cancelled subscription back to ACTIVE with a clean billing
// slate.
func (s *subscriptionService) ReactivateSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.FailedBillingAttempts = 0
	sub.CancellationReason = nil
	sub.CancelledAt = nil
	sub.EndDate = nil
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(sub.BillingCycle, now))

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeReactivated, types.ChangeInitiatorUser, "")

	s.Logger.Infow("reactivated subscription", "subscription_id", sub.ID)

	return sub, nil
}

// RecordPaymentFailure counts a failed charge against the subscription. The
// subscription moves to PAYMENT_FAILED on the first failure and is suspended
// once the failure count reaches the threshold.
func (s *subscriptionService) RecordPaymentFailure(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	sub.FailedBillingAttempts++
	if sub.Status != types.SubscriptionStatusPaymentFailed {
		if err := s.transition(sub, types.SubscriptionStatusPaymentFailed); err != nil {
			return nil, err
		}
	}

	failed := sub.Copy()
	suspend := sub.ShouldSuspendForNonPayment()
	if suspend {
		if err := s.transition(sub, types.SubscriptionStatusSuspended); err != nil {
			return nil, err
		}
		sub.NextBillingDate = nil
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, failed, types.ChangeTypePaymentFailed, types.ChangeInitiatorPaymentGateway, "")
	if suspend {
		s.appendHistory(ctx, failed, sub, types.ChangeTypeSuspended, types.ChangeInitiatorSystem, "repeated billing failures")
	}

	s.Logger.Warnw("recorded payment failure",
		"subscription_id", sub.ID,
		"failed_billing_attempts", sub.FailedBillingAttempts,
		"suspended", suspend)

	return sub, nil
}

// RecordPaymentRecovered clears the failure counter after a successful charge
// and restores the subscription to ACTIVE.
func (s *subscriptionService) RecordPaymentRecovered(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := sub.Copy()

	if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
		return nil, err
	}

	now := s.Engine.Now()
	sub.FailedBillingAttempts = 0
	sub.LastBilledAt = &now
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(sub.BillingCycle, now))

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypePaymentSucceeded, types.ChangeInitiatorPaymentGateway, "")

	s.Logger.Infow("recorded payment recovery",
		"subscription_id", sub.ID,
		"next_billing_date", sub.NextBillingDate)

	return sub, nil
}

// ChangeTier moves the subscription to another catalog tier. Upgrades route
// through UPGRADE_PENDING and downgrades through DOWNGRADE_PENDING before
// settling back on ACTIVE; an upgrade from trial converts the trial directly.
// The tier change is persisted before usage limits are re-synced, so a limit
// sync error is returned alongside the already-updated subscription.
func (s *subscriptionService) ChangeTier(ctx context.Context, id string, newTier types.SubscriptionTier) (*subscription.Subscription, error) {
	if err := newTier.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.TierID == newTier {
		return nil, ierr.NewError("subscription is already on the requested tier").
			WithHintf("The subscription is already on the %s tier", newTier).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"tier":            newTier,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	old := sub.Copy()

	upgrade := sub.TierID.IsUpgradeTo(newTier)
	changeType := types.ChangeTypeDowngraded
	if upgrade {
		changeType = types.ChangeTypeUpgraded
	}

	switch {
	case upgrade && !sub.Status.CanUpgrade():
		return nil, ierr.NewError("subscription cannot upgrade from its current status").
			WithHint("Tier upgrades require an active or trialing subscription").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"status":          sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	case !upgrade && !sub.Status.CanDowngrade():
		return nil, ierr.NewError("subscription cannot downgrade from its current status").
			WithHint("Tier downgrades require an active subscription").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"status":          sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := s.Engine.Now()
	if sub.Status == types.SubscriptionStatusTrial {
		// An upgrade from trial converts the trial in place.
		if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
			return nil, err
		}
		sub.ActivatedAt = &now
		sub.LastBilledAt = &now
	} else {
		pending := types.SubscriptionStatusDowngradePending
		if upgrade {
			pending = types.SubscriptionStatusUpgradePending
		}
		if err := s.transition(sub, pending); err != nil {
			return nil, err
		}
		if err := s.transition(sub, types.SubscriptionStatusActive); err != nil {
			return nil, err
		}
	}

	sub.TierID = newTier
	if upgrade {
		sub.UpgradedAt = &now
	}
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	if sub.NextBillingDate == nil {
		sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(sub.BillingCycle, now))
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, changeType, types.ChangeInitiatorUser, "")

	s.Logger.Infow("changed subscription tier",
		"subscription_id", sub.ID,
		"old_tier", old.TierID,
		"new_tier", newTier,
		"billing_amount", sub.BillingAmount)

	usageService := NewUsageService(s.ServiceParams)
	if err := usageService.SyncLimitsToTier(ctx, sub.ID, newTier); err != nil {
		return sub, err
	}

	return sub, nil
}

// ChangeBillingCycle switches the charge cadence and re-anchors the next
// billing date from now.
func (s *subscriptionService) ChangeBillingCycle(ctx context.Context, id string, newCycle types.BillingCycle) (*subscription.Subscription, error) {
	if err := newCycle.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.BillingCycle == newCycle {
		return nil, ierr.NewError("subscription is already on the requested billing cycle").
			WithHintf("The subscription is already billed %s", newCycle).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"billing_cycle":   newCycle,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if !sub.Status.IsBillable() && sub.Status != types.SubscriptionStatusTrial {
		return nil, ierr.NewError("billing cycle cannot change in the current status").
			WithHint("Billing cycle changes require an active or trialing subscription").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"status":          sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	old := sub.Copy()

	sub.BillingCycle = newCycle
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}
	if sub.NextBillingDate != nil {
		sub.NextBillingDate = lo.ToPtr(s.Engine.NextBillingDate(newCycle, s.Engine.Now()))
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypeBillingCycleChanged, types.ChangeInitiatorUser, "")

	s.Logger.Infow("changed billing cycle",
		"subscription_id", sub.ID,
		"old_cycle", old.BillingCycle,
		"new_cycle", newCycle,
		"billing_amount", sub.BillingAmount)

	return sub, nil
}

// ApplyPromotion puts the configured promotion discount on the subscription.
// An empty code is replaced with a generated one.
func (s *subscriptionService) ApplyPromotion(ctx context.Context, id string, code string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.HasPromotion() {
		return nil, ierr.NewError("subscription already has an active promotion").
			WithHint("Remove the current promotion before applying a new one").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
				"promotion_code":  lo.FromPtr(sub.PromotionCode),
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if sub.Status.IsFinal() {
		return nil, ierr.NewError("promotions cannot be applied to a terminated subscription").
			WithHint("The subscription has reached its final state").
			Mark(ierr.ErrInvalidOperation)
	}

	if code == "" {
		code = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_PROMOTION)
	}
	old := sub.Copy()

	sub.PromotionDiscount = s.Engine.PromotionPercent()
	sub.PromotionCode = &code
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypePromotionApplied, types.ChangeInitiatorUser, code)

	s.Logger.Infow("applied promotion",
		"subscription_id", sub.ID,
		"promotion_code", code,
		"promotion_discount", sub.PromotionDiscount,
		"billing_amount", sub.BillingAmount)

	return sub, nil
}

func (s *subscriptionService) RemovePromotion(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !sub.HasPromotion() {
		return nil, ierr.NewError("subscription has no active promotion").
			WithHint("There is no promotion to remove").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	old := sub.Copy()
	code := lo.FromPtr(sub.PromotionCode)

	sub.PromotionDiscount = decimal.Zero
	sub.PromotionCode = nil
	if err := s.recomputeBilling(sub); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, old, sub, types.ChangeTypePromotionRemoved, types.ChangeInitiatorUser, code)

	s.Logger.Infow("removed promotion",
		"subscription_id", sub.ID,
		"promotion_code", code,
		"billing_amount", sub.BillingAmount)

	return sub, nil
}

// SetAutoRenewal toggles renewal at period end. Setting the current value is
// a no-op and appends no audit row.
func (s *subscriptionService) SetAutoRenewal(ctx context.Context, id string, enabled bool) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.AutoRenewal == enabled {
		return sub, nil
	}

	if sub.Status.IsFinal() {
		return nil, ierr.NewError("auto-renewal cannot change on a terminated subscription").
			WithHint("The subscription has reached its final state").
			Mark(ierr.ErrInvalidOperation)
	}
	old := sub.Copy()

	sub.AutoRenewal = enabled

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	changeType := types.ChangeTypeAutoRenewalDisabled
	if enabled {
		changeType = types.ChangeTypeAutoRenewalEnabled
	}
	s.appendHistory(ctx, old, sub, changeType, types.ChangeInitiatorUser, "")

	s.Logger.Infow("set auto renewal",
		"subscription_id", sub.ID,
		"auto_renewal", enabled)

	return sub, nil
}

// transition validates the status change through the engine and applies it.
func (s *subscriptionService) transition(sub *subscription.Subscription, target types.SubscriptionStatus) error {
	to, err := s.Engine.EvaluateTransition(sub.Status, target).Get()
	if err != nil {
		return err
	}
	sub.Status = to
	return nil
}

// recomputeBilling re-resolves the monthly list price and the effective
// per-cycle charge from the catalog. Billing amounts are never carried over
// across tier, cycle or promotion changes.
func (s *subscriptionService) recomputeBilling(sub *subscription.Subscription) error {
	t, err := s.Engine.Catalog().Tier(sub.TierID)
	if err != nil {
		return err
	}

	amount, err := s.Engine.CalculateBillingAmount(sub.TierID, sub.BillingCycle, sub.HasPromotion()).Get()
	if err != nil {
		return err
	}

	sub.MonthlyPrice = t.MonthlyPrice
	sub.BillingAmount = amount
	return nil
}

// appendHistory builds and persists the audit row for one transition. The
// subscription update has already been committed when this runs, so failures
// are logged rather than unwinding the mutation.
func (s *subscriptionService) appendHistory(ctx context.Context, oldSub, newSub *subscription.Subscription, changeType types.ChangeType, initiator types.ChangeInitiator, reason string) {
	row, err := history.NewFromSnapshots(oldSub, newSub, changeType, initiator, reason, s.Engine.Now())
	if err != nil {
		s.Logger.Errorw("failed to build subscription history row",
			"error", err,
			"change_type", changeType)
		return
	}

	row.TenantID = types.GetTenantID(ctx)
	row.CreatedBy = types.GetUserID(ctx)
	row.UpdatedBy = types.GetUserID(ctx)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		row.Metadata = row.Metadata.Merge(types.Metadata{"request_id": requestID})
	}

	if err := s.HistoryRepo.Create(ctx, row); err != nil {
		s.Logger.Errorw("failed to append subscription history",
			"error", err,
			"subscription_id", newSub.ID,
			"change_type", changeType)
	}
}
