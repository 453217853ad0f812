// Package result implements the railway outcome type used across the rules
// engine. A Result is exactly one of Success(value) or Failure(error); business
// failures travel inside results instead of panics, so composed pipelines stay
// total over their inputs. Errors carried by failures are built with the
// internal errors package and keep their sentinel marks through composition.
package result

import (
	"fmt"

	ierr "github.com/finbase/subcore/internal/errors"
)

// Result holds either a success value or a failure error, never both.
type Result[T any] struct {
	value T
	err   error
}

// Success wraps a value in a successful result
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure wraps an error in a failed result. A nil error is itself a fault and
// is replaced by a system-marked error so the failure stays observable.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = ierr.NewError("failure constructed with nil error").
			Mark(ierr.ErrSystem)
	}
	return Result[T]{err: err}
}

// Of lifts a conventional (value, error) pair into a result
func Of[T any](value T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(value)
}

// IsSuccess returns true when the result holds a value
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure returns true when the result holds an error
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

// Value returns the success value, or the zero value on failure
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure error, or nil on success
func (r Result[T]) Err() error {
	return r.err
}

// Get unpacks the result into a conventional (value, error) pair
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// ValueOr returns the success value, or fallback on failure
func (r Result[T]) ValueOr(fallback T) T {
	if r.IsFailure() {
		return fallback
	}
	return r.value
}

// ToPtr returns a pointer to the success value, or nil on failure
func (r Result[T]) ToPtr() *T {
	if r.IsFailure() {
		return nil
	}
	v := r.value
	return &v
}

// Filter keeps a success only when pred holds; otherwise it becomes a failure
// carrying errIfFalse. A panicking predicate converts to a system failure.
func (r Result[T]) Filter(pred func(T) bool, errIfFalse error) (out Result[T]) {
	if r.IsFailure() {
		return r
	}
	defer capture(&out)
	if !pred(r.value) {
		return Failure[T](errIfFalse)
	}
	return r
}

// MapErr transforms the error of a failure, leaving successes untouched
func (r Result[T]) MapErr(fn func(error) error) (out Result[T]) {
	if r.IsSuccess() {
		return r
	}
	defer capture(&out)
	return Failure[T](fn(r.err))
}

// OnSuccess runs fn for its side effects when the result is a success and
// returns the receiver unchanged
func (r Result[T]) OnSuccess(fn func(T)) Result[T] {
	if r.IsSuccess() {
		fn(r.value)
	}
	return r
}

// OnFailure runs fn for its side effects when the result is a failure and
// returns the receiver unchanged
func (r Result[T]) OnFailure(fn func(error)) Result[T] {
	if r.IsFailure() {
		fn(r.err)
	}
	return r
}

// Recover converts a failure into a success using fn. A panicking recovery
// function converts to a system failure.
func (r Result[T]) Recover(fn func(error) T) (out Result[T]) {
	if r.IsSuccess() {
		return r
	}
	defer capture(&out)
	return Success(fn(r.err))
}

// RecoverWith converts a failure into whatever result fn produces
func (r Result[T]) RecoverWith(fn func(error) Result[T]) (out Result[T]) {
	if r.IsSuccess() {
		return r
	}
	defer capture(&out)
	return fn(r.err)
}

// Map applies fn to a success value, producing a result of the new type.
// Failures pass through; a panicking fn converts to a system failure.
// Type-changing transforms are package functions because Go methods cannot
// introduce new type parameters.
func Map[T, U any](r Result[T], fn func(T) U) (out Result[U]) {
	if r.IsFailure() {
		return Failure[U](r.err)
	}
	defer capture(&out)
	return Success(fn(r.value))
}

// FlatMap applies a result-producing fn to a success value. Failures pass
// through; a panicking fn converts to a system failure.
func FlatMap[T, U any](r Result[T], fn func(T) Result[U]) (out Result[U]) {
	if r.IsFailure() {
		return Failure[U](r.err)
	}
	defer capture(&out)
	return fn(r.value)
}

// Match folds the result into a single value of type U
func Match[T, U any](r Result[T], onSuccess func(T) U, onFailure func(error) U) U {
	if r.IsFailure() {
		return onFailure(r.err)
	}
	return onSuccess(r.value)
}

// Sequence collapses a slice of results into one result of a slice. The first
// failure wins, in stable left-to-right order.
func Sequence[T any](results []Result[T]) Result[[]T] {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.IsFailure() {
			return Failure[[]T](r.err)
		}
		values = append(values, r.value)
	}
	return Success(values)
}

// Combine merges two results with fn, short-circuiting on the first failure.
// Equivalent to FlatMap(a, x -> Map(b, y -> fn(x, y))).
func Combine[A, B, C any](a Result[A], b Result[B], fn func(A, B) C) Result[C] {
	return FlatMap(a, func(x A) Result[C] {
		return Map(b, func(y B) C {
			return fn(x, y)
		})
	})
}

// capture converts a panic inside a mapper into a system-marked failure so
// composed pipelines never propagate an uncaught fault.
func capture[U any](out *Result[U]) {
	if rec := recover(); rec != nil {
		*out = Failure[U](ierr.NewError("panic recovered in result pipeline").
			WithHint("An unexpected error occurred").
			WithReportableDetails(map[string]any{
				"panic": fmt.Sprintf("%v", rec),
			}).
			Mark(ierr.ErrSystem))
	}
}
