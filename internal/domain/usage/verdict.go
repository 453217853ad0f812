package usage

import "github.com/finbase/subcore/internal/types"

// Verdict is a point-in-time read of a usage record against its cap.
type Verdict struct {
	WithinLimit  bool                    `json:"within_limit"`
	Remaining    int64                   `json:"remaining"`
	Percentage   float64                 `json:"percentage"`
	WarningLevel types.UsageWarningLevel `json:"warning_level"`
}

// Verdict evaluates the record without mutating it.
func (u *UsageTracking) Verdict() Verdict {
	return Verdict{
		WithinLimit:  u.IsWithinLimit(),
		Remaining:    u.RemainingUsage(),
		Percentage:   u.UsagePercentage(),
		WarningLevel: u.WarningLevel(),
	}
}

// IncrementOutcome is the result of applying an increment to a copy of a
// usage record.
type IncrementOutcome struct {
	// Record is the updated copy, ready to persist
	Record *UsageTracking `json:"record"`

	// StillWithinLimit is the increment's return: false when the added amount
	// pushed the count over the cap
	StillWithinLimit bool `json:"still_within_limit"`
}
