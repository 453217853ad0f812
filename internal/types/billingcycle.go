package types

import (
	"time"

	ierr "github.com/finbase/subcore/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BillingCycle is the charging cadence of a subscription
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "MONTHLY"
	BillingCycleQuarterly BillingCycle = "QUARTERLY"
	BillingCycleAnnual    BillingCycle = "ANNUAL"
)

var BillingCycleValues = []BillingCycle{
	BillingCycleMonthly,
	BillingCycleQuarterly,
	BillingCycleAnnual,
}

// Nominal discount of each cycle relative to paying monthly. Display metadata
// only: the catalog's per-cycle list prices are authoritative for charging and
// are allowed to diverge slightly from these blended constants.
var billingCycleDiscounts = map[BillingCycle]decimal.Decimal{
	BillingCycleMonthly:   decimal.Zero,
	BillingCycleQuarterly: decimal.NewFromFloat(0.08),
	BillingCycleAnnual:    decimal.NewFromFloat(0.17),
}

func (c BillingCycle) String() string {
	return string(c)
}

func (c BillingCycle) Validate() error {
	if !lo.Contains(BillingCycleValues, c) {
		return ierr.NewError("invalid billing cycle").
			WithHint("Invalid billing cycle").
			WithReportableDetails(map[string]any{
				"billing_cycle":  c,
				"allowed_values": BillingCycleValues,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Months returns the number of months one cycle covers
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleQuarterly:
		return 3
	case BillingCycleAnnual:
		return 12
	default:
		return 1
	}
}

// NextBillingDate advances from by one cycle, clamping the day of month so that
// e.g. Jan 31 + MONTHLY lands on the last day of February.
func (c BillingCycle) NextBillingDate(from time.Time) time.Time {
	return AddClampedDate(from, 0, c.Months(), 0)
}

// DiscountPercent returns the cycle's nominal discount as a fraction (0.08 = 8%)
func (c BillingCycle) DiscountPercent() decimal.Decimal {
	if d, ok := billingCycleDiscounts[c]; ok {
		return d
	}
	return decimal.Zero
}

// DiscountMultiplier returns 1 − DiscountPercent
func (c BillingCycle) DiscountMultiplier() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(c.DiscountPercent())
}

// HasDiscount returns true when the cycle carries a nominal discount
func (c BillingCycle) HasDiscount() bool {
	return c.DiscountPercent().IsPositive()
}
