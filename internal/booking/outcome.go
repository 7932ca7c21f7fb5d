package booking

import (
	"github.com/iliyamo/venue-booking/internal/apperror"
)

// outcome is the result of one guarded write: either a value or the
// conflict that prevented it.  Conflicts are expected results, not errors,
// until the public API turns them into SlotConflict.
type outcome[T any] struct {
	value    T
	conflict *apperror.ConflictDetail
}

func ok[T any](v T) outcome[T] { return outcome[T]{value: v} }

func conflicted[T any](d apperror.ConflictDetail) outcome[T] { return outcome[T]{conflict: &d} }

// Conflicted reports whether the write was refused.
func (o outcome[T]) Conflicted() bool { return o.conflict != nil }

// unwrap converts the outcome into the (value, error) shape callers see.
func (o outcome[T]) unwrap() (T, error) {
	if o.conflict != nil {
		var zero T
		return zero, apperror.SlotConflict(*o.conflict)
	}
	return o.value, nil
}
