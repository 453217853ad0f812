package testutil

import (
	"context"

	"github.com/finbase/subcore/internal/domain/subscription"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository with
// optimistic locking: Update rejects writes carrying a stale Version.
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

// subscriptionFilterFn implements filtering logic for subscriptions
func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok {
		return true
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok && tenantID != "" {
		if sub.TenantID != tenantID {
			return false
		}
	}

	if len(f.SubscriptionIDs) > 0 && !lo.Contains(f.SubscriptionIDs, sub.ID) {
		return false
	}

	if f.UserID != "" && sub.UserID != f.UserID {
		return false
	}

	if len(f.Tiers) > 0 && !lo.Contains(f.Tiers, sub.TierID) {
		return false
	}

	if len(f.SubscriptionStatus) > 0 && !lo.Contains(f.SubscriptionStatus, sub.Status) {
		return false
	}

	if len(f.BillingCycles) > 0 && !lo.Contains(f.BillingCycles, sub.BillingCycle) {
		return false
	}

	if f.ActiveAt != nil {
		if !sub.Status.HasAccess() {
			return false
		}
		if sub.StartDate.After(*f.ActiveAt) {
			return false
		}
		if sub.EndDate != nil && sub.EndDate.Before(*f.ActiveAt) {
			return false
		}
	}

	if f.BillingDueBefore != nil {
		if sub.NextBillingDate == nil || !sub.NextBillingDate.Before(*f.BillingDueBefore) {
			return false
		}
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && sub.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && sub.CreatedAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

// subscriptionSortFn sorts newest first
func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, sub.ID, sub.Copy()); err != nil {
		return ierr.WithError(err).
			WithHint("A subscription with this ID already exists").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", id).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	return sub.Copy(), nil
}

func (s *InMemorySubscriptionStore) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	filter := &types.SubscriptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		UserID:      userID,
	}

	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}

	if len(subs) == 0 {
		return nil, ierr.NewError("subscription not found for user").
			WithHintf("No subscription found for user %s", userID).
			WithReportableDetails(map[string]interface{}{
				"user_id": userID,
			}).
			Mark(ierr.ErrNotFound)
	}

	return subs[0].Copy(), nil
}

// Update applies optimistic locking: the write is rejected unless the
// incoming Version matches the stored one. On success the stored row carries
// Version+1 and the passed aggregate is synced to it.
func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	stored, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", sub.ID).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrNotFound)
	}

	if stored.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Reload the subscription and retry the change").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
				"stored_version":  stored.Version,
				"given_version":   sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version = stored.Version + 1
	return s.InMemoryStore.Update(ctx, sub.ID, sub.Copy())
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", id).
			WithReportableDetails(map[string]interface{}{
				"subscription_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*subscription.Subscription, len(subs))
	for i, sub := range subs {
		out[i] = sub.Copy()
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}
