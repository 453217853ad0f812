package usage

import (
	"context"
	"time"

	"github.com/finbase/subcore/internal/types"
)

// Repository provides access to the usage tracking store. At most one record
// exists per (subscription, feature) pair.
type Repository interface {
	Create(ctx context.Context, usage *UsageTracking) error
	Get(ctx context.Context, id string) (*UsageTracking, error)
	GetBySubscriptionAndFeature(ctx context.Context, subscriptionID string, feature types.FeatureKey) (*UsageTracking, error)
	Update(ctx context.Context, usage *UsageTracking) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.UsageFilter) ([]*UsageTracking, error)
	Count(ctx context.Context, filter *types.UsageFilter) (int, error)

	// ListDueForReset returns records whose reset date is not after asOf
	ListDueForReset(ctx context.Context, asOf time.Time) ([]*UsageTracking, error)
}
