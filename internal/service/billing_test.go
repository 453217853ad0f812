package service

import (
	"testing"
	"time"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/testutil"
	"github.com/finbase/subcore/internal/types"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service      BillingService
	subscription SubscriptionService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
}

func (s *BillingServiceSuite) setupService() {
	stores := s.GetStores()
	params := ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		Engine:      s.GetEngine(),
		SubRepo:     stores.SubscriptionRepo,
		UsageRepo:   stores.UsageRepo,
		HistoryRepo: stores.HistoryRepo,
	}
	s.service = NewBillingService(params)
	s.subscription = NewSubscriptionService(params)
}

func (s *BillingServiceSuite) TestCalculateBillingAmount() {
	testCases := []struct {
		name      string
		tier      types.SubscriptionTier
		cycle     types.BillingCycle
		promotion bool
		expected  string
	}{
		{
			name:     "pro monthly list price",
			tier:     types.SubscriptionTierPro,
			cycle:    types.BillingCycleMonthly,
			expected: "29.99",
		},
		{
			name:     "pro quarterly list price",
			tier:     types.SubscriptionTierPro,
			cycle:    types.BillingCycleQuarterly,
			expected: "83.99",
		},
		{
			name:     "pro annual list price",
			tier:     types.SubscriptionTierPro,
			cycle:    types.BillingCycleAnnual,
			expected: "299.99",
		},
		{
			name:      "pro monthly with promotion",
			tier:      types.SubscriptionTierPro,
			cycle:     types.BillingCycleMonthly,
			promotion: true,
			expected:  "23.99",
		},
		{
			name:      "ai premium monthly with promotion",
			tier:      types.SubscriptionTierAIPremium,
			cycle:     types.BillingCycleMonthly,
			promotion: true,
			expected:  "47.99",
		},
		{
			name:      "annual promotion rounds half up",
			tier:      types.SubscriptionTierPro,
			cycle:     types.BillingCycleAnnual,
			promotion: true,
			expected:  "239.99",
		},
		{
			name:     "free is zero",
			tier:     types.SubscriptionTierFree,
			cycle:    types.BillingCycleAnnual,
			expected: "0",
		},
		{
			name:      "free stays zero under promotion",
			tier:      types.SubscriptionTierFree,
			cycle:     types.BillingCycleMonthly,
			promotion: true,
			expected:  "0",
		},
		{
			name:     "institutional annual list price",
			tier:     types.SubscriptionTierInstitutional,
			cycle:    types.BillingCycleAnnual,
			expected: "2999.99",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			amount, err := s.service.CalculateBillingAmount(tc.tier, tc.cycle, tc.promotion)
			s.NoError(err)
			s.Equal(tc.expected, amount.String())
		})
	}
}

func (s *BillingServiceSuite) TestCalculateBillingAmountUnknownTier() {
	_, err := s.service.CalculateBillingAmount(types.SubscriptionTier("PLATINUM"), types.BillingCycleMonthly, false)
	s.Error(err)
}

func (s *BillingServiceSuite) TestNextBillingDateClampsMonthEnd() {
	// A January 31st anchor lands on the last day of February.
	from := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	next := s.service.NextBillingDate(types.BillingCycleMonthly, from)
	s.Equal(time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC), next)

	// A leap-day anchor clamps on non-leap years.
	from = time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	next = s.service.NextBillingDate(types.BillingCycleAnnual, from)
	s.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), next)

	// Quarterly advances three months.
	from = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	next = s.service.NextBillingDate(types.BillingCycleQuarterly, from)
	s.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), next)
}

func (s *BillingServiceSuite) TestPreviewAmounts() {
	preview, err := s.service.PreviewAmounts(types.SubscriptionTierPro)
	s.NoError(err)
	s.Equal(types.SubscriptionTierPro, preview.Tier)
	s.Equal("Pro", preview.DisplayName)
	s.Equal("usd", preview.Currency)
	s.Require().Len(preview.Cycles, 3)

	monthly := preview.Cycles[0]
	s.Equal(types.BillingCycleMonthly, monthly.Cycle)
	s.Equal("29.99", monthly.ListPrice.String())
	s.Equal("23.99", monthly.PromotionalPrice.String())
	s.Equal("0", monthly.MonthlySavings.String())
	s.Equal("0", monthly.TotalSavings.String())

	quarterly := preview.Cycles[1]
	s.Equal(types.BillingCycleQuarterly, quarterly.Cycle)
	s.Equal("83.99", quarterly.ListPrice.String())
	s.Equal("67.19", quarterly.PromotionalPrice.String())
	s.Equal("1.99", quarterly.MonthlySavings.String())
	s.Equal("5.98", quarterly.TotalSavings.String())

	annual := preview.Cycles[2]
	s.Equal(types.BillingCycleAnnual, annual.Cycle)
	s.Equal("299.99", annual.ListPrice.String())
	s.Equal("239.99", annual.PromotionalPrice.String())
	s.Equal("4.99", annual.MonthlySavings.String())
	s.Equal("59.89", annual.TotalSavings.String())
}

func (s *BillingServiceSuite) TestPreviewAmountsUnknownTier() {
	_, err := s.service.PreviewAmounts(types.SubscriptionTier("PLATINUM"))
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BillingServiceSuite) TestQuoteSubscription() {
	sub, err := s.subscription.CreateSubscription(s.GetContext(), CreateSubscriptionRequest{
		UserID:       "user_1",
		TierID:       types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.NoError(err)
	sub, err = s.subscription.ActivateSubscription(s.GetContext(), sub.ID)
	s.NoError(err)

	quote, err := s.service.QuoteSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(sub.ID, quote.SubscriptionID)
	s.Equal(types.SubscriptionTierPro, quote.Tier)
	s.Equal(types.BillingCycleMonthly, quote.BillingCycle)
	s.Equal("usd", quote.Currency)
	s.Equal("29.99", quote.ListPrice.String())
	s.Equal("29.99", quote.AmountDue.String())
	s.False(quote.PromotionActive)
	s.Require().NotNil(quote.NextBillingDate)
	s.True(quote.NextBillingDate.Equal(*sub.NextBillingDate))

	// An active promotion shows up in the amount due but not the list price.
	_, err = s.subscription.ApplyPromotion(s.GetContext(), sub.ID, "SPRING")
	s.NoError(err)

	quote, err = s.service.QuoteSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal("29.99", quote.ListPrice.String())
	s.Equal("23.99", quote.AmountDue.String())
	s.True(quote.PromotionActive)
}

func (s *BillingServiceSuite) TestQuoteSubscriptionNotFound() {
	_, err := s.service.QuoteSubscription(s.GetContext(), "subs_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
