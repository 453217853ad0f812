package testutil

import (
	"context"
	"time"

	"github.com/finbase/subcore/internal/domain/usage"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryUsageStore implements usage.Repository. It enforces the
// one-record-per-(subscription, feature) invariant.
type InMemoryUsageStore struct {
	*InMemoryStore[*usage.UsageTracking]
}

// NewInMemoryUsageStore creates a new in-memory usage store
func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		InMemoryStore: NewInMemoryStore[*usage.UsageTracking](),
	}
}

// usageFilterFn implements filtering logic for usage records
func usageFilterFn(ctx context.Context, rec *usage.UsageTracking, filter interface{}) bool {
	if rec == nil {
		return false
	}

	f, ok := filter.(*types.UsageFilter)
	if !ok {
		return true
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok && tenantID != "" {
		if rec.TenantID != tenantID {
			return false
		}
	}

	if f.SubscriptionID != "" && rec.SubscriptionID != f.SubscriptionID {
		return false
	}

	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}

	if len(f.Features) > 0 && !lo.Contains(f.Features, rec.Feature) {
		return false
	}

	if f.LimitExceeded != nil && rec.LimitExceeded != *f.LimitExceeded {
		return false
	}

	if f.ResetDueBefore != nil && !rec.ResetDate.Before(*f.ResetDueBefore) {
		return false
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && rec.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && rec.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

// usageSortFn sorts newest first
func usageSortFn(i, j *usage.UsageTracking) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryUsageStore) Create(ctx context.Context, rec *usage.UsageTracking) error {
	if rec == nil {
		return ierr.NewError("usage record cannot be nil").
			WithHint("Usage record cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if existing, err := s.GetBySubscriptionAndFeature(ctx, rec.SubscriptionID, rec.Feature); err == nil && existing != nil {
		return ierr.NewError("usage record already exists for feature").
			WithHintf("Subscription %s already tracks %s", rec.SubscriptionID, rec.Feature).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": rec.SubscriptionID,
				"feature":         rec.Feature,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	if err := s.InMemoryStore.Create(ctx, rec.ID, rec.Copy()); err != nil {
		return ierr.WithError(err).
			WithHint("A usage record with this ID already exists").
			WithReportableDetails(map[string]interface{}{
				"usage_id": rec.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return nil
}

func (s *InMemoryUsageStore) Get(ctx context.Context, id string) (*usage.UsageTracking, error) {
	rec, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Usage record with ID %s was not found", id).
			WithReportableDetails(map[string]interface{}{
				"usage_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	return rec.Copy(), nil
}

func (s *InMemoryUsageStore) GetBySubscriptionAndFeature(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*usage.UsageTracking, error) {
	filter := &types.UsageFilter{
		QueryFilter:    types.NewNoLimitQueryFilter(),
		SubscriptionID: subscriptionID,
		Features:       []types.FeatureKey{feature},
	}

	recs, err := s.InMemoryStore.List(ctx, filter, usageFilterFn, usageSortFn)
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, ierr.NewError("usage record not found").
			WithHintf("Subscription %s does not track %s yet", subscriptionID, feature).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
				"feature":         feature,
			}).
			Mark(ierr.ErrNotFound)
	}

	return recs[0].Copy(), nil
}

func (s *InMemoryUsageStore) Update(ctx context.Context, rec *usage.UsageTracking) error {
	if rec == nil {
		return ierr.NewError("usage record cannot be nil").
			WithHint("Usage record cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, rec.ID, rec.Copy()); err != nil {
		return ierr.WithError(err).
			WithHintf("Usage record with ID %s was not found", rec.ID).
			WithReportableDetails(map[string]interface{}{
				"usage_id": rec.ID,
			}).
			Mark(ierr.ErrNotFound)
	}

	return nil
}

func (s *InMemoryUsageStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return ierr.WithError(err).
			WithHintf("Usage record with ID %s was not found", id).
			WithReportableDetails(map[string]interface{}{
				"usage_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryUsageStore) List(ctx context.Context, filter *types.UsageFilter) ([]*usage.UsageTracking, error) {
	recs, err := s.InMemoryStore.List(ctx, filter, usageFilterFn, usageSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*usage.UsageTracking, len(recs))
	for i, rec := range recs {
		out[i] = rec.Copy()
	}
	return out, nil
}

func (s *InMemoryUsageStore) Count(ctx context.Context, filter *types.UsageFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, usageFilterFn)
}

func (s *InMemoryUsageStore) ListDueForReset(ctx context.Context, asOf time.Time) ([]*usage.UsageTracking, error) {
	cutoff := asOf.Add(time.Nanosecond)
	filter := &types.UsageFilter{
		QueryFilter:    types.NewNoLimitQueryFilter(),
		ResetDueBefore: &cutoff,
	}
	return s.List(ctx, filter)
}
