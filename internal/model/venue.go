package model

import "time"

// Venue is a bookable location.  Identity is immutable; every other field
// is configuration that is re-read on each evaluation.
//
// Fields:
//  ID                   – primary key identifier.
//  Name                 – display name.
//  Timezone             – IANA zone name used for every local date/time.
//  DefaultDurationMin   – reservation length used when no rule matches.
//  TurnTimeMin          – minutes a table stays blocked after a booking.
//  PacingPerQuarterHour – venue-wide cap per 15 minute bucket (0 = none).
//  HoldTTLMin           – lifetime of a hold in minutes.
//  CancelWindowMin      – guests may cancel up to this many minutes before start.
//  ModifyWindowMin      – guests may reschedule up to this many minutes before start.
type Venue struct {
	ID                   uint64    // venues.id
	Name                 string    // venues.name
	Timezone             string    // venues.timezone
	DefaultDurationMin   int       // venues.default_duration_min
	TurnTimeMin          int       // venues.turn_time_min
	PacingPerQuarterHour int       // venues.pacing_per_quarter_hour
	HoldTTLMin           int       // venues.hold_ttl_min
	CancelWindowMin      int       // venues.cancel_window_min
	ModifyWindowMin      int       // venues.modify_window_min
	CreatedAt            time.Time // venues.created_at
	UpdatedAt            time.Time // venues.updated_at
}

// TurnTime returns the venue turn-time with negative values clamped to zero.
func (v Venue) TurnTime() int {
	if v.TurnTimeMin < 0 {
		return 0
	}
	return v.TurnTimeMin
}

// VenueConfig bundles everything the scheduling core reads for a venue.
// Shifts and pacing rules contain active rows only.
type VenueConfig struct {
	Venue     Venue
	Shifts    []Shift
	Rules     []AvailabilityRule
	Blackouts []BlackoutDate
	Pacing    []PacingRule
	Buffer    ServiceBuffer
}

// Clone returns a deep copy that shares no slices or pointers with c.
func (c VenueConfig) Clone() VenueConfig {
	out := c
	out.Shifts = append([]Shift(nil), c.Shifts...)
	for i := range out.Shifts {
		out.Shifts[i].Capacity = cloneInt(out.Shifts[i].Capacity)
	}
	out.Rules = append([]AvailabilityRule(nil), c.Rules...)
	out.Blackouts = append([]BlackoutDate(nil), c.Blackouts...)
	out.Pacing = append([]PacingRule(nil), c.Pacing...)
	for i := range out.Pacing {
		out.Pacing[i].MaxReservations = cloneInt(out.Pacing[i].MaxReservations)
		out.Pacing[i].MaxCovers = cloneInt(out.Pacing[i].MaxCovers)
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// BlackoutOn reports whether date is closed and returns the matching row.
func (c *VenueConfig) BlackoutOn(date string) (BlackoutDate, bool) {
	for _, b := range c.Blackouts {
		if b.Date == date {
			return b, true
		}
	}
	return BlackoutDate{}, false
}
