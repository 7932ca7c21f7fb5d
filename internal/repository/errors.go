// Package repository error values.  Not-found sentinels are the core's
// taxonomy values so handlers and services can match either name.
package repository

import (
	"errors"

	"github.com/iliyamo/venue-booking/internal/apperror"
)

var (
	// ErrVenueNotFound is returned when the venue id does not exist.
	ErrVenueNotFound = apperror.ErrVenueNotFound
	// ErrReservationNotFound is returned when a reservation lookup fails.
	ErrReservationNotFound = apperror.ErrReservationNotFound
	// ErrHoldNotFound is returned when a hold lookup fails.
	ErrHoldNotFound = apperror.ErrHoldNotFound
	// ErrBlackoutNotFound is returned when deleting a date that is not closed.
	ErrBlackoutNotFound = errors.New("blackout date not found")
)

// ErrDuplicateSlot signals that a write hit the (venue, table, date, time)
// uniqueness constraint.  The surrounding transaction is unusable and must
// be rolled back.
var ErrDuplicateSlot = errors.New("slot already claimed")

// ErrConflict is returned when a write cannot proceed because of existing
// state, such as adding a blackout for a date that is already closed.
var ErrConflict = errors.New("conflict")
