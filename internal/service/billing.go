package service

import (
	"context"
	"time"

	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

// BillingService resolves charge amounts and billing schedules from the tier
// catalog. Amounts come out of the engine's calculators; nothing here does
// arithmetic of its own.
type BillingService interface {
	CalculateBillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle, promotionActive bool) (decimal.Decimal, error)
	NextBillingDate(cycle types.BillingCycle, from time.Time) time.Time
	PreviewAmounts(tierID types.SubscriptionTier) (*BillingPreview, error)
	QuoteSubscription(ctx context.Context, subscriptionID string) (*SubscriptionQuote, error)
}

// CyclePreview is the display-oriented price breakdown of one billing cycle.
// Savings figures compare against paying monthly and are never used for
// charging.
type CyclePreview struct {
	Cycle            types.BillingCycle `json:"cycle"`
	ListPrice        decimal.Decimal    `json:"list_price"`
	PromotionalPrice decimal.Decimal    `json:"promotional_price"`
	MonthlySavings   decimal.Decimal    `json:"monthly_savings"`
	TotalSavings     decimal.Decimal    `json:"total_savings"`
}

// BillingPreview lists every billing cycle of a tier with list and
// promotional pricing.
type BillingPreview struct {
	Tier        types.SubscriptionTier `json:"tier"`
	DisplayName string                 `json:"display_name"`
	Currency    string                 `json:"currency"`
	Cycles      []CyclePreview         `json:"cycles"`
}

// SubscriptionQuote is the effective charge of one subscription as it stands.
type SubscriptionQuote struct {
	SubscriptionID  string                 `json:"subscription_id"`
	Tier            types.SubscriptionTier `json:"tier"`
	BillingCycle    types.BillingCycle     `json:"billing_cycle"`
	Currency        string                 `json:"currency"`
	ListPrice       decimal.Decimal        `json:"list_price"`
	AmountDue       decimal.Decimal        `json:"amount_due"`
	PromotionActive bool                   `json:"promotion_active"`
	NextBillingDate *time.Time             `json:"next_billing_date"`
}

type billingService struct {
	ServiceParams
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams: params,
	}
}

func (s *billingService) CalculateBillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle, promotionActive bool) (decimal.Decimal, error) {
	return s.Engine.CalculateBillingAmount(tierID, cycle, promotionActive).Get()
}

func (s *billingService) NextBillingDate(cycle types.BillingCycle, from time.Time) time.Time {
	return s.Engine.NextBillingDate(cycle, from)
}

func (s *billingService) PreviewAmounts(tierID types.SubscriptionTier) (*BillingPreview, error) {
	t, err := s.Engine.Catalog().Tier(tierID)
	if err != nil {
		return nil, err
	}

	preview := &BillingPreview{
		Tier:        t.ID,
		DisplayName: t.DisplayName,
		Currency:    t.Currency,
		Cycles:      make([]CyclePreview, 0, len(types.BillingCycleValues)),
	}

	for _, cycle := range types.BillingCycleValues {
		listPrice, err := s.Engine.CalculateBillingAmount(tierID, cycle, false).Get()
		if err != nil {
			return nil, err
		}
		promoPrice, err := s.Engine.CalculateBillingAmount(tierID, cycle, true).Get()
		if err != nil {
			return nil, err
		}
		monthlySavings, err := t.MonthlySavings(cycle)
		if err != nil {
			return nil, err
		}
		totalSavings, err := t.TotalSavings(cycle)
		if err != nil {
			return nil, err
		}

		preview.Cycles = append(preview.Cycles, CyclePreview{
			Cycle:            cycle,
			ListPrice:        listPrice,
			PromotionalPrice: promoPrice,
			MonthlySavings:   monthlySavings,
			TotalSavings:     totalSavings,
		})
	}

	return preview, nil
}

// QuoteSubscription prices the subscription exactly as the next charge would:
// the active promotion applies, and the next billing date is whatever is
// scheduled on the aggregate.
func (s *billingService) QuoteSubscription(ctx context.Context, subscriptionID string) (*SubscriptionQuote, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	listPrice, err := s.Engine.CalculateBillingAmount(sub.TierID, sub.BillingCycle, false).Get()
	if err != nil {
		return nil, err
	}

	amountDue, err := s.Engine.CalculateBillingAmount(sub.TierID, sub.BillingCycle, sub.HasPromotion()).Get()
	if err != nil {
		return nil, err
	}

	return &SubscriptionQuote{
		SubscriptionID:  sub.ID,
		Tier:            sub.TierID,
		BillingCycle:    sub.BillingCycle,
		Currency:        sub.Currency,
		ListPrice:       listPrice,
		AmountDue:       amountDue,
		PromotionActive: sub.HasPromotion(),
		NextBillingDate: sub.NextBillingDate,
	}, nil
}
