package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/finbase/subcore/internal/types"
)

// FilterFunc reports whether item matches the given repository filter.
type FilterFunc[T any] func(ctx context.Context, item T, filter interface{}) bool

// SortFunc reports whether i sorts before j.
type SortFunc[T any] func(i, j T) bool

// InMemoryStore is the keyed map each in-memory repository builds on. The
// domain wrappers translate its plain errors into the shared taxonomy and
// own all copy-on-read/write semantics.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}
}

// Create stores item under id, rejecting duplicate ids.
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return fmt.Errorf("duplicate id %q", id)
	}

	s.items[id] = item
	return nil
}

// Get returns the item stored under id.
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return item, nil
	}

	var zero T
	return zero, fmt.Errorf("id %q not found", id)
}

// List returns the items passing filterFn, ordered by sortFn, with
// offset/limit pagination applied when the filter carries bounds.
func (s *InMemoryStore[T]) List(ctx context.Context, filter interface{}, filterFn FilterFunc[T], sortFn SortFunc[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			result = append(result, item)
		}
	}

	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}

	if f, ok := filter.(types.BaseFilter); ok && !f.IsUnlimited() {
		start := f.GetOffset()
		if start >= len(result) {
			return []T{}, nil
		}

		end := start + f.GetLimit()
		if end > len(result) {
			end = len(result)
		}
		return result[start:end], nil
	}

	return result, nil
}

// Count returns how many items pass filterFn, ignoring pagination.
func (s *InMemoryStore[T]) Count(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			count++
		}
	}

	return count, nil
}

// Update replaces the item stored under id, which must already exist.
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return fmt.Errorf("id %q not found", id)
	}

	s.items[id] = item
	return nil
}

// Delete removes the item stored under id, which must already exist.
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return fmt.Errorf("id %q not found", id)
	}

	delete(s.items, id)
	return nil
}

// Clear drops every stored item. Test suites call it between cases.
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}
