package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusSeated    ReservationStatus = "SEATED"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// transitions lists the allowed next states for every non-terminal state.
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusSeated, StatusCancelled},
	StatusSeated:    {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Blocking reports whether a reservation in this state occupies its table.
func (s ReservationStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusSeated
}

// CanTransition reports whether from -> to is allowed by the state machine.
func CanTransition(from, to ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GuestContact holds the guest-editable fields of a reservation.  These are
// the only columns sealed at rest; the repository decodes them before they
// reach the core.
type GuestContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Reservation is a booking for a party at a local date and time.
//
// Fields:
//  Date/Time       – venue-local slot, "YYYY-MM-DD" and "HH:MM".
//  StartsAt        – absolute instant derived from Date/Time in the venue zone.
//  DurationMin     – dining length; 0 means derive from the matching rule.
//  TableIDs        – ordered assignment; the first entry is the primary table.
//  HoldID          – hold this reservation was converted from, if any.
//  RescheduledFrom – reservation that was cancelled to make room for this one.
type Reservation struct {
	ID              uint64            `json:"id"`                         // reservations.id
	VenueID         uint64            `json:"venue_id"`                   // reservations.venue_id
	Status          ReservationStatus `json:"status"`                     // reservations.status
	Date            string            `json:"date"`                       // reservations.local_date
	Time            string            `json:"time"`                       // reservations.local_time
	StartsAt        time.Time         `json:"starts_at"`                  // reservations.starts_at (UTC)
	DurationMin     int               `json:"duration_min"`               // reservations.duration_min
	PartySize       int               `json:"party_size"`                 // reservations.party_size
	TableIDs        []uint64          `json:"table_ids"`                  // reservation_tables.table_id ordered by position
	Guest           GuestContact      `json:"guest"`                      // reservations.guest_* (sealed at rest)
	Notes           string            `json:"notes,omitempty"`            // reservations.notes
	HoldID          *uint64           `json:"hold_id,omitempty"`          // reservations.hold_id (nullable)
	RescheduledFrom *uint64           `json:"rescheduled_from,omitempty"` // reservations.rescheduled_from (nullable)
	CreatedAt       time.Time         `json:"created_at"`                 // reservations.created_at
	UpdatedAt       time.Time         `json:"updated_at"`                 // reservations.updated_at
}

// PrimaryTableID returns the display table, or 0 when the reservation is
// table-less.
func (r Reservation) PrimaryTableID() uint64 {
	if len(r.TableIDs) == 0 {
		return 0
	}
	return r.TableIDs[0]
}

// Clone returns a deep copy so callers can diff before/after states.
func (r Reservation) Clone() Reservation {
	out := r
	out.TableIDs = append([]uint64(nil), r.TableIDs...)
	if r.HoldID != nil {
		v := *r.HoldID
		out.HoldID = &v
	}
	if r.RescheduledFrom != nil {
		v := *r.RescheduledFrom
		out.RescheduledFrom = &v
	}
	return out
}
