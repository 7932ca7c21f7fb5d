// Package repository defines the storage contracts used by the booking core
// and their MySQL implementation.  Every method takes the venue id
// explicitly; there is no ambient tenant state.  Guest contact fields are
// sealed and opened here, so callers above this package only ever see
// plaintext.
package repository

import (
	"context"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

// TableFilter narrows ListTables.  Zero values mean "no constraint".
type TableFilter struct {
	MinCapacity int      // capacity >= MinCapacity
	Area        string   // exact area match
	TableIDs    []uint64 // restrict to these ids
	ActiveOnly  bool     // skip inactive tables
}

// ConfigLoader reads venue scheduling configuration.
type ConfigLoader interface {
	// LoadVenueConfig returns the venue with its active shifts, rules,
	// blackout dates, active pacing rules and service buffer.  Unknown
	// venues fail with ErrVenueNotFound.
	LoadVenueConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error)
	ListTables(ctx context.Context, venueID uint64, f TableFilter) ([]model.Table, error)
}

// Reader is the read side used by conflict detection and pacing.  It is
// implemented both by the store and by an open transaction.
type Reader interface {
	// ReservationsStartingBetween returns PENDING, CONFIRMED and SEATED
	// reservations whose start lies in [from, to).
	ReservationsStartingBetween(ctx context.Context, venueID uint64, from, to time.Time) ([]model.Reservation, error)
	// HoldsStartingBetween returns HELD holds that are unexpired at now and
	// whose start lies in [from, to).
	HoldsStartingBetween(ctx context.Context, venueID uint64, from, to, now time.Time) ([]model.Hold, error)
}

// Tx is a serializable transaction.  Writes maintain the slot claims that
// back the (venue, table, date, time) uniqueness guard; a violation is
// reported as ErrDuplicateSlot.
type Tx interface {
	Reader

	// LockSlot takes an exclusive lock on key that is released when the
	// transaction ends.
	LockSlot(ctx context.Context, key string) error
	// ExpireHolds marks lapsed HELD holds of the venue EXPIRED and releases
	// their claims.
	ExpireHolds(ctx context.Context, venueID uint64, now time.Time) (int, error)

	GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error

	GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error)
	InsertHold(ctx context.Context, h *model.Hold) error
	ConsumeHold(ctx context.Context, venueID, holdID, reservationID uint64) error
}

// Store is the full storage surface.
type Store interface {
	ConfigLoader
	Reader

	GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error)
	GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error)
	// ListReservations returns every reservation on a local date, in any
	// status, ordered by start.
	ListReservations(ctx context.Context, venueID uint64, date string) ([]model.Reservation, error)

	AddBlackout(ctx context.Context, b *model.BlackoutDate) error
	DeleteBlackout(ctx context.Context, venueID uint64, date string) error

	// InTx runs fn in a serializable transaction, committing when fn
	// returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ClaimTableIDs returns the table ids a booking claims.  A table-less
// booking claims the reserved id 0, which makes two table-less bookings for
// the same nominal slot collide on the uniqueness guard.
func ClaimTableIDs(tableIDs []uint64) []uint64 {
	if len(tableIDs) == 0 {
		return []uint64{0}
	}
	return tableIDs
}
