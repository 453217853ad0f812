// Package pricing resolves the effective per-cycle charge for a tier. Two
// interchangeable strategies share the Calculator contract: the standard
// calculator reads list prices straight from the catalog, the promotional
// calculator discounts the nonzero ones.
package pricing

import (
	"time"

	"github.com/finbase/subcore/internal/domain/tier"
	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/finbase/subcore/internal/result"
	"github.com/finbase/subcore/internal/types"
	"github.com/shopspring/decimal"
)

// CalculatorType defines the pricing strategy to use
type CalculatorType string

const (
	CalculatorTypeStandard    CalculatorType = "standard"
	CalculatorTypePromotional CalculatorType = "promotional"
)

// Calculator computes the per-cycle charge for a (tier, cycle) pair.
// Quarterly and annual amounts come from the catalog's own list prices, never
// derived from the monthly price at call time.
type Calculator interface {
	BillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle) result.Result[decimal.Decimal]
}

// NewCalculator creates a pricing calculator of the specified type. The
// promotional percent is only consulted by the promotional strategy.
func NewCalculator(calculatorType CalculatorType, catalog tier.Catalog, promotionPercent decimal.Decimal) Calculator {
	switch calculatorType {
	case CalculatorTypePromotional:
		return &promotionalCalculator{
			standard: standardCalculator{catalog: catalog},
			percent:  promotionPercent,
		}
	default:
		return &standardCalculator{catalog: catalog}
	}
}

// NextBillingDate advances from by one cycle length, clamping to the last day
// of the target month when the source day does not exist in it.
func NextBillingDate(cycle types.BillingCycle, from time.Time) time.Time {
	return cycle.NextBillingDate(from)
}

// standardCalculator reads list prices from the catalog.
type standardCalculator struct {
	catalog tier.Catalog
}

func (c *standardCalculator) BillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle) result.Result[decimal.Decimal] {
	// FREE is zero for every cycle regardless of catalog contents
	if tierID == types.SubscriptionTierFree {
		return result.Success(decimal.Zero)
	}

	t, err := c.catalog.Tier(tierID)
	if err != nil {
		return result.Failure[decimal.Decimal](err)
	}

	price, err := t.PriceFor(cycle)
	if err != nil {
		return result.Failure[decimal.Decimal](err)
	}

	if price.IsNegative() {
		return result.Failure[decimal.Decimal](ierr.NewError("price lookup produced a negative amount").
			WithHint("Catalog prices must be non-negative").
			WithReportableDetails(map[string]interface{}{
				"tier":          tierID,
				"billing_cycle": cycle,
				"price":         price,
			}).
			Mark(ierr.ErrArithmeticInconsistency))
	}

	return result.Success(price)
}

// promotionalCalculator discounts the standard amount by a fixed fraction.
// Zero amounts are exempt and stay zero.
type promotionalCalculator struct {
	standard standardCalculator
	percent  decimal.Decimal
}

func (c *promotionalCalculator) BillingAmount(tierID types.SubscriptionTier, cycle types.BillingCycle) result.Result[decimal.Decimal] {
	if c.percent.IsNegative() || c.percent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return result.Failure[decimal.Decimal](ierr.NewError("promotion percent out of range").
			WithHint("Promotion percent must be at least 0 and less than 1").
			WithReportableDetails(map[string]interface{}{
				"promotion_percent": c.percent,
			}).
			Mark(ierr.ErrArithmeticInconsistency))
	}

	return result.FlatMap(c.standard.BillingAmount(tierID, cycle), func(base decimal.Decimal) result.Result[decimal.Decimal] {
		if base.IsZero() {
			return result.Success(base)
		}

		discounted := base.Mul(decimal.NewFromInt(1).Sub(c.percent)).Round(2)
		if discounted.IsNegative() {
			return result.Failure[decimal.Decimal](ierr.NewError("discounted amount is negative").
				WithHint("Promotion produced a negative charge").
				WithReportableDetails(map[string]interface{}{
					"tier":          tierID,
					"billing_cycle": cycle,
					"base":          base,
					"discounted":    discounted,
				}).
				Mark(ierr.ErrArithmeticInconsistency))
		}

		return result.Success(discounted)
	})
}
