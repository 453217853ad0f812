package service

import (
	"math"
	"testing"
	"time"

	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/testutil"
	"github.com/finbase/subcore/internal/types"
	"github.com/stretchr/testify/suite"
)

type UsageServiceSuite struct {
	testutil.BaseServiceTestSuite
	service      UsageService
	subscription SubscriptionService
}

func TestUsageService(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
}

func (s *UsageServiceSuite) setupService() {
	stores := s.GetStores()
	params := ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		Engine:      s.GetEngine(),
		SubRepo:     stores.SubscriptionRepo,
		UsageRepo:   stores.UsageRepo,
		HistoryRepo: stores.HistoryRepo,
	}
	s.service = NewUsageService(params)
	s.subscription = NewSubscriptionService(params)
}

func (s *UsageServiceSuite) activeSubscription(tierID types.SubscriptionTier) *subscription.Subscription {
	sub, err := s.subscription.CreateSubscription(s.GetContext(), CreateSubscriptionRequest{
		UserID:       "user_1",
		TierID:       tierID,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.NoError(err)
	sub, err = s.subscription.ActivateSubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	return sub
}

func (s *UsageServiceSuite) TestCheckUsageCreatesDefaultRow() {
	sub := s.activeSubscription(types.SubscriptionTierPro)

	verdict, err := s.service.CheckUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Require().NotNil(verdict)
	s.True(verdict.WithinLimit)
	s.Equal(int64(25), verdict.Remaining)
	s.Equal(0.0, verdict.Percentage)
	s.Equal(types.UsageWarningLevelNone, verdict.WarningLevel)

	// The first touch materialized a default row for the pair.
	rec, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Equal(int64(0), rec.UsageCount)
	s.Equal(int64(25), rec.UsageLimit)
	s.Equal(30, rec.ResetFrequencyDays)
	anchor := types.MonthAnchor(s.GetNow())
	s.True(rec.PeriodStart.Equal(anchor))
	s.True(rec.ResetDate.Equal(anchor.AddDate(0, 0, 30)))
	s.Equal(types.DefaultTenantID, rec.TenantID)

	// A repeat check reuses the row instead of creating another.
	_, err = s.service.CheckUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	filter := types.NewNoLimitUsageFilter()
	filter.SubscriptionID = sub.ID
	rows, err := s.service.ListUsage(s.GetContext(), filter)
	s.NoError(err)
	s.Len(rows, 1)
}

func (s *UsageServiceSuite) TestCheckUsageDeniedWithoutAccess() {
	// PENDING grants no feature access.
	pending, err := s.subscription.CreateSubscription(s.GetContext(), CreateSubscriptionRequest{
		UserID:       "user_1",
		TierID:       types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.NoError(err)

	_, err = s.service.CheckUsage(s.GetContext(), pending.ID, types.FeatureWatchlists)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	// Neither does SUSPENDED.
	sub := s.activeSubscription(types.SubscriptionTierPro)
	_, err = s.subscription.SuspendSubscription(s.GetContext(), sub.ID, "fraud review")
	s.NoError(err)

	_, err = s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 1)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *UsageServiceSuite) TestCheckUsageDuringCancellationGrace() {
	sub := s.activeSubscription(types.SubscriptionTierPro)
	_, err := s.subscription.CancelSubscription(s.GetContext(), sub.ID, "switching providers")
	s.NoError(err)

	// Cancelled subscriptions keep access until the period ends.
	verdict, err := s.service.CheckUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.True(verdict.WithinLimit)
}

func (s *UsageServiceSuite) TestCheckUsageUnsupportedFeature() {
	free := s.activeSubscription(types.SubscriptionTierFree)

	_, err := s.service.CheckUsage(s.GetContext(), free.ID, types.FeatureAIAnalysis)
	s.Error(err)
	s.True(ierr.IsUnsupportedFeature(err))

	// No row is left behind for the unsupported feature.
	_, err = s.service.GetUsage(s.GetContext(), free.ID, types.FeatureAIAnalysis)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *UsageServiceSuite) TestRecordUsage() {
	sub := s.activeSubscription(types.SubscriptionTierPro)

	outcome, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 10)
	s.NoError(err)
	s.True(outcome.StillWithinLimit)
	s.Equal(int64(10), outcome.Record.UsageCount)
	s.Equal(int64(15), outcome.Record.RemainingUsage())
	s.False(outcome.Record.LimitExceeded)

	// Landing exactly on the cap is not a breach.
	outcome, err = s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 15)
	s.NoError(err)
	s.True(outcome.StillWithinLimit)
	s.Equal(int64(25), outcome.Record.UsageCount)
	s.Equal(int64(0), outcome.Record.RemainingUsage())
	s.False(outcome.Record.LimitExceeded)
	s.Equal(100.0, outcome.Record.UsagePercentage())
	s.Equal(types.UsageWarningLevelCritical, outcome.Record.WarningLevel())

	// The overshooting increment is still recorded in full.
	outcome, err = s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 3)
	s.NoError(err)
	s.False(outcome.StillWithinLimit)
	s.Equal(int64(28), outcome.Record.UsageCount)
	s.True(outcome.Record.LimitExceeded)
	s.Equal(int64(1), outcome.Record.ExceededCount)
	s.Require().NotNil(outcome.Record.FirstExceededAt)
	s.True(outcome.Record.FirstExceededAt.Equal(s.GetNow()))

	// The persisted row matches the outcome.
	rec, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Equal(int64(28), rec.UsageCount)
	s.True(rec.LimitExceeded)
}

func (s *UsageServiceSuite) TestRecordUsageUnlimited() {
	sub := s.activeSubscription(types.SubscriptionTierInstitutional)

	outcome, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureAPICalls, 1_000_000)
	s.NoError(err)
	s.True(outcome.StillWithinLimit)
	s.True(outcome.Record.IsUnlimited())
	s.Equal(int64(math.MaxInt64), outcome.Record.RemainingUsage())
	s.Equal(0.0, outcome.Record.UsagePercentage())
	s.False(outcome.Record.LimitExceeded)
}

func (s *UsageServiceSuite) TestRecordUsageNegativeAmount() {
	sub := s.activeSubscription(types.SubscriptionTierPro)

	_, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, -5)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageServiceSuite) TestResetUsagePeriod() {
	sub := s.activeSubscription(types.SubscriptionTierPro)

	_, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 26)
	s.NoError(err)

	s.SetNow(s.GetNow().Add(31 * 24 * time.Hour))
	rec, err := s.service.ResetUsagePeriod(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Equal(int64(0), rec.UsageCount)
	s.False(rec.LimitExceeded)
	s.Equal(int64(0), rec.ExceededCount)
	s.Nil(rec.FirstExceededAt)
	s.True(rec.PeriodStart.Equal(s.GetNow()))
	s.True(rec.ResetDate.Equal(s.GetNow().AddDate(0, 0, 30)))

	// Resetting a feature that was never touched is a lookup failure.
	_, err = s.service.ResetUsagePeriod(s.GetContext(), sub.ID, types.FeaturePortfolios)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *UsageServiceSuite) TestSyncLimitsToTier() {
	sub := s.activeSubscription(types.SubscriptionTierAIPremium)

	_, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 30)
	s.NoError(err)
	_, err = s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureAIAnalysis, 12)
	s.NoError(err)

	err = s.service.SyncLimitsToTier(s.GetContext(), sub.ID, types.SubscriptionTierPro)
	s.NoError(err)

	// The watchlists cap dropped below the existing count.
	watchlists, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Equal(int64(25), watchlists.UsageLimit)
	s.Equal(int64(30), watchlists.UsageCount)
	s.True(watchlists.LimitExceeded)

	// AI analysis is not offered on Pro; the row is left as it was.
	ai, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureAIAnalysis)
	s.NoError(err)
	s.Equal(int64(500), ai.UsageLimit)
	s.Equal(int64(12), ai.UsageCount)
	s.False(ai.LimitExceeded)

	err = s.service.SyncLimitsToTier(s.GetContext(), sub.ID, types.SubscriptionTier("PLATINUM"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageServiceSuite) TestResetDueUsagePeriods() {
	// Pin the clock mid-month so due-ness is deterministic: the api_calls row
	// anchors to the 1st with a one-day cadence, so its reset date is long
	// past; the watchlists row resets on the 31st and is not due.
	s.SetNow(time.Date(2025, 7, 18, 9, 0, 0, 0, time.UTC))
	sub := s.activeSubscription(types.SubscriptionTierPro)

	_, err := s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureAPICalls, 40)
	s.NoError(err)
	_, err = s.service.RecordUsage(s.GetContext(), sub.ID, types.FeatureWatchlists, 5)
	s.NoError(err)

	count, err := s.service.ResetDueUsagePeriods(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(1, count)

	apiCalls, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureAPICalls)
	s.NoError(err)
	s.Equal(int64(0), apiCalls.UsageCount)
	s.True(apiCalls.PeriodStart.Equal(s.GetNow()))
	s.True(apiCalls.ResetDate.Equal(s.GetNow().AddDate(0, 0, 1)))
	s.Equal(string(types.ChangeInitiatorScheduledTask), apiCalls.UpdatedBy)

	watchlists, err := s.service.GetUsage(s.GetContext(), sub.ID, types.FeatureWatchlists)
	s.NoError(err)
	s.Equal(int64(5), watchlists.UsageCount)

	// Nothing is due immediately after the sweep.
	count, err = s.service.ResetDueUsagePeriods(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(0, count)
}
