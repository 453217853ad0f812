package service

import (
	"context"

	"github.com/finbase/subcore/internal/domain/history"
	"github.com/finbase/subcore/internal/domain/subscription"
	"github.com/finbase/subcore/internal/types"
)

// HistoryService records and serves the subscription audit trail. Rows are
// append-only; there are no update or delete operations.
type HistoryService interface {
	RecordChange(ctx context.Context, req RecordChangeRequest) (*history.SubscriptionHistory, error)
	GetHistory(ctx context.Context, id string) (*history.SubscriptionHistory, error)
	ListHistory(ctx context.Context, filter *types.HistoryFilter) ([]*history.SubscriptionHistory, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*history.SubscriptionHistory, error)
	ClassifyChange(oldSub, newSub *subscription.Subscription) (*history.SubscriptionHistory, error)
}

// RecordChangeRequest describes one transition to append. An empty ChangeType
// is derived from the snapshots; an empty Initiator defaults to SYSTEM.
type RecordChangeRequest struct {
	Old        *subscription.Subscription
	New        *subscription.Subscription
	ChangeType types.ChangeType
	Initiator  types.ChangeInitiator
	Reason     string
}

type historyService struct {
	ServiceParams
}

func NewHistoryService(params ServiceParams) HistoryService {
	return &historyService{
		ServiceParams: params,
	}
}

func (s *historyService) RecordChange(ctx context.Context, req RecordChangeRequest) (*history.SubscriptionHistory, error) {
	changeType := req.ChangeType
	if changeType == "" {
		derived, err := history.DeriveChangeType(req.Old, req.New)
		if err != nil {
			return nil, err
		}
		changeType = derived
	} else if err := changeType.Validate(); err != nil {
		return nil, err
	}

	initiator := req.Initiator
	if initiator == "" {
		initiator = types.ChangeInitiatorSystem
	} else if err := initiator.Validate(); err != nil {
		return nil, err
	}

	row, err := history.NewFromSnapshots(req.Old, req.New, changeType, initiator, req.Reason, s.Engine.Now())
	if err != nil {
		return nil, err
	}

	row.TenantID = types.GetTenantID(ctx)
	row.CreatedBy = types.GetUserID(ctx)
	row.UpdatedBy = types.GetUserID(ctx)
	if requestID := types.GetRequestID(ctx); requestID != "" {
		row.Metadata = row.Metadata.Merge(types.Metadata{"request_id": requestID})
	}

	if err := s.HistoryRepo.Create(ctx, row); err != nil {
		return nil, err
	}

	s.Logger.Debugw("recorded subscription change",
		"subscription_id", row.SubscriptionID,
		"change_type", row.ChangeType,
		"initiator", row.Initiator)

	return row, nil
}

func (s *historyService) GetHistory(ctx context.Context, id string) (*history.SubscriptionHistory, error) {
	return s.HistoryRepo.Get(ctx, id)
}

func (s *historyService) ListHistory(ctx context.Context, filter *types.HistoryFilter) ([]*history.SubscriptionHistory, error) {
	if filter == nil {
		filter = types.NewHistoryFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.HistoryRepo.List(ctx, filter)
}

func (s *historyService) ListBySubscription(ctx context.Context, subscriptionID string) ([]*history.SubscriptionHistory, error) {
	return s.HistoryRepo.ListBySubscriptionID(ctx, subscriptionID)
}

// ClassifyChange derives the audit projection for a pair of snapshots without
// persisting anything.
func (s *historyService) ClassifyChange(oldSub, newSub *subscription.Subscription) (*history.SubscriptionHistory, error) {
	row, err := s.Engine.ClassifyChange(oldSub, newSub).Get()
	if err != nil {
		return nil, err
	}
	return row, nil
}
