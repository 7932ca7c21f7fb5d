package model

// Shift is a recurring weekly service window.  When EndTime <= StartTime
// the window runs past midnight into the next calendar day.
//
// Fields:
//  DayOfWeek – 0 (Sunday) through 6 (Saturday).
//  StartTime – local opening time, "HH:MM".
//  EndTime   – local closing time, "HH:MM".
//  Capacity  – optional seat/cover capacity used when no pacing rule applies.
type Shift struct {
	ID        uint64 // shifts.id
	VenueID   uint64 // shifts.venue_id
	DayOfWeek int    // shifts.day_of_week
	StartTime string // shifts.start_time
	EndTime   string // shifts.end_time
	IsActive  bool   // shifts.is_active
	Capacity  *int   // shifts.capacity (nullable)
}

// Overnight reports whether the shift wraps past midnight.  Times are
// zero-padded "HH:MM" so lexical order is chronological.
func (s Shift) Overnight() bool { return s.EndTime <= s.StartTime }

// AvailabilityRule maps a party-size band to a slot length and a trailing
// buffer.  The buffer is added after the slot length and before turn-time.
type AvailabilityRule struct {
	ID            uint64 // availability_rules.id
	VenueID       uint64 // availability_rules.venue_id
	MinParty      int    // availability_rules.min_party
	MaxParty      int    // availability_rules.max_party
	SlotLengthMin int    // availability_rules.slot_length_min
	BufferMin     int    // availability_rules.buffer_min
}

// Matches reports whether partySize falls inside the inclusive band.
func (r AvailabilityRule) Matches(partySize int) bool {
	return partySize >= r.MinParty && partySize <= r.MaxParty
}

// Width is the size of the band; smaller is more specific.
func (r AvailabilityRule) Width() int { return r.MaxParty - r.MinParty }

// BlackoutDate closes a full local calendar date.
type BlackoutDate struct {
	ID      uint64 `json:"id"`               // blackout_dates.id
	VenueID uint64 `json:"venue_id"`         // blackout_dates.venue_id
	Date    string `json:"date"`             // blackout_dates.blackout_date ("YYYY-MM-DD")
	Reason  string `json:"reason,omitempty"` // blackout_dates.reason
}

// ServiceBuffer trims minutes from the start and end of each open window.
type ServiceBuffer struct {
	VenueID   uint64 // service_buffers.venue_id
	BeforeMin int    // service_buffers.before_min
	AfterMin  int    // service_buffers.after_min
}

// DefaultPacingWindowMin is the bucket width when no pacing rule sets one.
const DefaultPacingWindowMin = 15

// PacingRule caps reservations and/or covers inside a fixed time bucket.
// A nil or non-positive cap means the dimension is unlimited.
type PacingRule struct {
	ID              uint64 // pacing_rules.id
	VenueID         uint64 // pacing_rules.venue_id
	WindowMin       int    // pacing_rules.window_min
	MaxReservations *int   // pacing_rules.max_reservations (nullable)
	MaxCovers       *int   // pacing_rules.max_covers (nullable)
	IsActive        bool   // pacing_rules.is_active
}

// Window returns the bucket width, falling back to the default.
func (p PacingRule) Window() int {
	if p.WindowMin <= 0 {
		return DefaultPacingWindowMin
	}
	return p.WindowMin
}

// ReservationCap returns the reservation cap and whether it is limited.
func (p PacingRule) ReservationCap() (int, bool) {
	if p.MaxReservations == nil || *p.MaxReservations <= 0 {
		return 0, false
	}
	return *p.MaxReservations, true
}

// CoverCap returns the cover cap and whether it is limited.
func (p PacingRule) CoverCap() (int, bool) {
	if p.MaxCovers == nil || *p.MaxCovers <= 0 {
		return 0, false
	}
	return *p.MaxCovers, true
}
