package testutil

import (
	"context"

	"github.com/finbase/subcore/internal/domain/history"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryHistoryStore implements history.Repository. The store is
// append-only, matching the audit trail contract.
type InMemoryHistoryStore struct {
	*InMemoryStore[*history.SubscriptionHistory]
}

// NewInMemoryHistoryStore creates a new in-memory history store
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		InMemoryStore: NewInMemoryStore[*history.SubscriptionHistory](),
	}
}

// historyFilterFn implements filtering logic for history rows
func historyFilterFn(ctx context.Context, row *history.SubscriptionHistory, filter interface{}) bool {
	if row == nil {
		return false
	}

	f, ok := filter.(*types.HistoryFilter)
	if !ok {
		return true
	}

	if tenantID, ok := ctx.Value(types.CtxTenantID).(string); ok && tenantID != "" {
		if row.TenantID != tenantID {
			return false
		}
	}

	if f.SubscriptionID != "" && row.SubscriptionID != f.SubscriptionID {
		return false
	}

	if f.UserID != "" && row.UserID != f.UserID {
		return false
	}

	if len(f.ChangeTypes) > 0 && !lo.Contains(f.ChangeTypes, row.ChangeType) {
		return false
	}

	if len(f.Initiators) > 0 && !lo.Contains(f.Initiators, row.Initiator) {
		return false
	}

	if f.AffectsBillingOnly && !row.AffectsBilling() {
		return false
	}

	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && row.EffectiveAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && row.EffectiveAt.After(*f.EndTime) {
			return false
		}
	}

	return true
}

// historySortFn sorts newest first
func historySortFn(i, j *history.SubscriptionHistory) bool {
	if i == nil || j == nil {
		return false
	}
	return i.EffectiveAt.After(j.EffectiveAt)
}

func (s *InMemoryHistoryStore) Create(ctx context.Context, row *history.SubscriptionHistory) error {
	if row == nil {
		return ierr.NewError("history row cannot be nil").
			WithHint("History row cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, row.ID, row); err != nil {
		return ierr.WithError(err).
			WithHint("A history row with this ID already exists").
			WithReportableDetails(map[string]interface{}{
				"history_id": row.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return nil
}

func (s *InMemoryHistoryStore) Get(ctx context.Context, id string) (*history.SubscriptionHistory, error) {
	row, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("History row with ID %s was not found", id).
			WithReportableDetails(map[string]interface{}{
				"history_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	return row, nil
}

func (s *InMemoryHistoryStore) List(ctx context.Context, filter *types.HistoryFilter) ([]*history.SubscriptionHistory, error) {
	return s.InMemoryStore.List(ctx, filter, historyFilterFn, historySortFn)
}

func (s *InMemoryHistoryStore) Count(ctx context.Context, filter *types.HistoryFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, historyFilterFn)
}

func (s *InMemoryHistoryStore) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]*history.SubscriptionHistory, error) {
	filter := &types.HistoryFilter{
		QueryFilter:    types.NewNoLimitQueryFilter(),
		SubscriptionID: subscriptionID,
	}
	return s.List(ctx, filter)
}
