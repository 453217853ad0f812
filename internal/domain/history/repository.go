package history

import (
	"context"

	"github.com/finbase/subcore/internal/types"
)

// Repository provides access to the audit trail. The store is append-only;
// there is no update or delete.
type Repository interface {
	Create(ctx context.Context, history *SubscriptionHistory) error
	Get(ctx context.Context, id string) (*SubscriptionHistory, error)
	List(ctx context.Context, filter *types.HistoryFilter) ([]*SubscriptionHistory, error)
	Count(ctx context.Context, filter *types.HistoryFilter) (int, error)
	ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]*SubscriptionHistory, error)
}
