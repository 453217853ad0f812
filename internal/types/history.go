package types

// HistoryFilter represents filters for subscription history queries
type HistoryFilter struct {
	*QueryFilter
	*TimeRangeFilter

	SubscriptionID string `json:"subscription_id,omitempty" form:"subscription_id"`
	// UserID filters by owning user
	UserID string `json:"user_id,omitempty" form:"user_id"`
	// ChangeTypes filters by change classification
	ChangeTypes []ChangeType `json:"change_types,omitempty" form:"change_types"`
	// Initiators filters by who initiated the change
	Initiators []ChangeInitiator `json:"initiators,omitempty" form:"initiators"`
	// AffectsBillingOnly keeps only billing-relevant changes
	AffectsBillingOnly bool `json:"affects_billing_only,omitempty" form:"affects_billing_only"`
}

// NewHistoryFilter creates a new HistoryFilter with default values
func NewHistoryFilter() *HistoryFilter {
	return &HistoryFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitHistoryFilter creates a new HistoryFilter with no pagination limits
func NewNoLimitHistoryFilter() *HistoryFilter {
	return &HistoryFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the history filter
func (f HistoryFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}

	for _, changeType := range f.ChangeTypes {
		if err := changeType.Validate(); err != nil {
			return err
		}
	}

	for _, initiator := range f.Initiators {
		if err := initiator.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *HistoryFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *HistoryFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetSort implements BaseFilter interface
func (f *HistoryFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *HistoryFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// GetStatus implements BaseFilter interface
func (f *HistoryFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// IsUnlimited implements BaseFilter interface
func (f *HistoryFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
