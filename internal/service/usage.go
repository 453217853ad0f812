package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/domain/usage"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// resetSweepConcurrency bounds the number of usage rows reset in parallel
// during a scheduled sweep.
const resetSweepConcurrency = 8

// UsageService meters feature consumption against subscription limits. A
// usage row is created lazily the first time a feature is touched, with the
// limit and reset cadence of the subscription's tier.
type UsageService interface {
	CheckUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.Verdict, error)
	RecordUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey, amount int64) (*usage.IncrementOutcome, error)
	GetUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.UsageTracking, error)
	ListUsage(ctx context.Context, filter *types.UsageFilter) ([]*usage.UsageTracking, error)
	ResetUsagePeriod(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.UsageTracking, error)
	SyncLimitsToTier(ctx context.Context, subscriptionID string, tierID types.SubscriptionTier) error
	ResetDueUsagePeriods(ctx context.Context, asOf time.Time) (int, error)
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{
		ServiceParams: params,
	}
}

// CheckUsage answers whether the subscription may consume the feature right
// now, without recording anything.
func (s *usageService) CheckUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.Verdict, error) {
	sub, err := s.accessibleSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	rec, err := s.loadOrCreateRecord(ctx, sub, feature)
	if err != nil {
		return nil, err
	}

	verdict, err := s.Engine.CheckUsage(rec).Get()
	if err != nil {
		return nil, err
	}

	return &verdict, nil
}

// RecordUsage adds amount to the feature's counter. Usage is recorded even
// when it overshoots the cap so the historical count stays accurate; the
// outcome reports whether the subscription is still within its limit.
func (s *usageService) RecordUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey, amount int64) (*usage.IncrementOutcome, error) {
	sub, err := s.accessibleSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	rec, err := s.loadOrCreateRecord(ctx, sub, feature)
	if err != nil {
		return nil, err
	}

	outcome, err := s.Engine.ApplyUsageIncrement(rec, amount).Get()
	if err != nil {
		return nil, err
	}

	outcome.Record.UpdatedBy = types.GetUserID(ctx)
	if err := s.UsageRepo.Update(ctx, outcome.Record); err != nil {
		return nil, err
	}

	if !outcome.StillWithinLimit {
		s.Logger.Warnw("usage limit exceeded",
			"subscription_id", subscriptionID,
			"feature", feature,
			"usage_count", outcome.Record.UsageCount,
			"usage_limit", outcome.Record.UsageLimit,
			"exceeded_count", outcome.Record.ExceededCount)
	} else if outcome.Record.IsApproachingLimit() {
		s.Logger.Warnw("usage approaching limit",
			"subscription_id", subscriptionID,
			"feature", feature,
			"usage_count", outcome.Record.UsageCount,
			"usage_limit", outcome.Record.UsageLimit,
			"warning_level", outcome.Record.WarningLevel())
	}

	return &outcome, nil
}

func (s *usageService) GetUsage(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.UsageTracking, error) {
	return s.UsageRepo.GetBySubscriptionAndFeature(ctx, subscriptionID, feature)
}

func (s *usageService) ListUsage(ctx context.Context, filter *types.UsageFilter) ([]*usage.UsageTracking, error) {
	if filter == nil {
		filter = types.NewUsageFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.UsageRepo.List(ctx, filter)
}

// ResetUsagePeriod zeroes the feature's counters and re-anchors the period at
// the current time.
func (s *usageService) ResetUsagePeriod(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.UsageTracking, error) {
	rec, err := s.UsageRepo.GetBySubscriptionAndFeature(ctx, subscriptionID, feature)
	if err != nil {
		return nil, err
	}

	updated, err := s.Engine.ResetUsagePeriod(rec).Get()
	if err != nil {
		return nil, err
	}

	updated.UpdatedBy = types.GetUserID(ctx)
	if err := s.UsageRepo.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.Logger.Infow("reset usage period",
		"subscription_id", subscriptionID,
		"feature", feature,
		"next_reset_date", updated.ResetDate)

	return updated, nil
}

// SyncLimitsToTier re-applies the tier's caps to every existing usage row of
// the subscription after a tier change. Rows for features the new tier does
// not offer are kept untouched; their counts survive a later upgrade, and the
// access check already denies features outside the tier.
func (s *usageService) SyncLimitsToTier(ctx context.Context, subscriptionID string, tierID types.SubscriptionTier) error {
	if err := tierID.Validate(); err != nil {
		return err
	}

	filter := types.NewNoLimitUsageFilter()
	filter.SubscriptionID = subscriptionID
	records, err := s.UsageRepo.List(ctx, filter)
	if err != nil {
		return err
	}

	catalog := s.Engine.Catalog()
	for _, rec := range records {
		limit, err := catalog.LimitFor(tierID, rec.Feature)
		if err != nil {
			if ierr.IsUnsupportedFeature(err) {
				s.Logger.Debugw("feature not offered on new tier, keeping usage row unchanged",
					"subscription_id", subscriptionID,
					"feature", rec.Feature,
					"tier", tierID)
				continue
			}
			return err
		}

		if rec.UsageLimit == limit {
			continue
		}

		rec.UpdateLimit(limit)
		rec.UpdatedAt = s.Engine.Now()
		rec.UpdatedBy = types.GetUserID(ctx)
		if err := s.UsageRepo.Update(ctx, rec); err != nil {
			return err
		}

		s.Logger.Infow("synced usage limit to tier",
			"subscription_id", subscriptionID,
			"feature", rec.Feature,
			"tier", tierID,
			"usage_limit", limit,
			"limit_exceeded", rec.LimitExceeded)
	}

	return nil
}

// ResetDueUsagePeriods sweeps every usage row whose reset date has passed as
// of asOf and re-anchors it. Rows are processed concurrently; one failing row
// does not stop the sweep. Returns the number of rows reset.
func (s *usageService) ResetDueUsagePeriods(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.UsageRepo.ListDueForReset(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	var resetCount atomic.Int64
	p := pool.New().WithMaxGoroutines(resetSweepConcurrency).WithContext(ctx)
	for _, rec := range due {
		rec := rec // per-iteration copy: required while go.mod targets go < 1.22
		p.Go(func(ctx context.Context) error {
			updated, err := s.Engine.ResetUsagePeriod(rec).Get()
			if err == nil {
				updated.UpdatedBy = string(types.ChangeInitiatorScheduledTask)
				err = s.UsageRepo.Update(ctx, updated)
			}
			if err != nil {
				return ierr.WithError(err).
					WithMessage("reset sweep row " + rec.ID).
					Mark(ierr.ErrSystem)
			}
			resetCount.Add(1)
			return nil
		})
	}

	err = p.Wait()
	s.Logger.Infow("usage reset sweep finished",
		"as_of", asOf,
		"due", len(due),
		"reset", resetCount.Load())

	return int(resetCount.Load()), err
}

// accessibleSubscription loads the subscription and enforces that its status
// grants feature access.
func (s *usageService) accessibleSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if !sub.HasAccess() {
		return nil, ierr.NewError("subscription status does not grant feature access").
			WithHintf("A %s subscription cannot use metered features", sub.Status).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
				"status":          sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	return sub, nil
}

// loadOrCreateRecord fetches the usage row for the pair, creating the tier's
// default row on first touch.
func (s *usageService) loadOrCreateRecord(ctx context.Context, sub *subscription.Subscription, feature types.FeatureKey) (*usage.UsageTracking, error) {
	rec, err := s.UsageRepo.GetBySubscriptionAndFeature(ctx, sub.ID, feature)
	if err == nil {
		return rec, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	rec, err = s.Engine.NewUsageRecord(sub.ID, sub.UserID, sub.TierID, feature).Get()
	if err != nil {
		return nil, err
	}

	rec.TenantID = types.GetTenantID(ctx)
	rec.CreatedBy = types.GetUserID(ctx)
	rec.UpdatedBy = types.GetUserID(ctx)

	if err := s.UsageRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.Logger.Debugw("created default usage row",
		"subscription_id", sub.ID,
		"feature", feature,
		"usage_limit", rec.UsageLimit,
		"reset_date", rec.ResetDate)

	return rec, nil
}
