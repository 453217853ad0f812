package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningLevelForPercentage(t *testing.T) {
	// Thresholds are inclusive: a record sitting exactly on 60/80/90/100
	// already carries the higher level.
	tests := []struct {
		pct  float64
		want UsageWarningLevel
	}{
		{0, UsageWarningLevelNone},
		{59.9, UsageWarningLevelNone},
		{60, UsageWarningLevelLow},
		{79.9, UsageWarningLevelLow},
		{80, UsageWarningLevelMedium},
		{89.9, UsageWarningLevelMedium},
		{90, UsageWarningLevelHigh},
		{99.9, UsageWarningLevelHigh},
		{100, UsageWarningLevelCritical},
		{120, UsageWarningLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WarningLevelForPercentage(tt.pct), "percentage %.1f", tt.pct)
	}
}

func TestUsageWarningLevelValidate(t *testing.T) {
	for _, level := range UsageWarningLevelValues {
		assert.NoError(t, level.Validate())
	}
	assert.Error(t, UsageWarningLevel("SEVERE").Validate())
}

func TestFeatureKeyValidate(t *testing.T) {
	for _, feature := range FeatureKeyValues {
		assert.NoError(t, feature.Validate())
	}

	err := FeatureKey("time_travel").Validate()
	assert.Error(t, err)
}

func TestUsageFilterValidate(t *testing.T) {
	t.Run("defaults pass", func(t *testing.T) {
		assert.NoError(t, NewUsageFilter().Validate())
	})

	t.Run("rejects unknown feature", func(t *testing.T) {
		f := NewUsageFilter()
		f.Features = []FeatureKey{"time_travel"}
		assert.Error(t, f.Validate())
	})
}
