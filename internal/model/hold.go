package model

import "time"

// HoldStatus is the lifecycle state of a hold.
type HoldStatus string

const (
	HoldHeld     HoldStatus = "HELD"
	HoldConsumed HoldStatus = "CONSUMED"
	HoldExpired  HoldStatus = "EXPIRED"
)

// Hold temporarily claims a slot while a guest confirms.  Expiry is checked
// lazily: a HELD row whose ExpiresAt has passed is treated as EXPIRED by
// every reader.
//
// Fields:
//  Token         – opaque value returned to the client for correlation.
//  TableID       – zero or one table; nil is a table-less hold.
//  ReservationID – set once the hold is consumed.
type Hold struct {
	ID            uint64     `json:"id"`                       // holds.id
	VenueID       uint64     `json:"venue_id"`                 // holds.venue_id
	Token         string     `json:"token"`                    // holds.token
	Status        HoldStatus `json:"status"`                   // holds.status
	TableID       *uint64    `json:"table_id,omitempty"`       // holds.table_id (nullable)
	Date          string     `json:"date"`                     // holds.local_date
	Time          string     `json:"time"`                     // holds.local_time
	StartsAt      time.Time  `json:"starts_at"`                // holds.starts_at (UTC)
	DurationMin   int        `json:"duration_min"`             // holds.duration_min
	PartySize     int        `json:"party_size"`               // holds.party_size
	ExpiresAt     time.Time  `json:"expires_at"`               // holds.expires_at (UTC)
	ReservationID *uint64    `json:"reservation_id,omitempty"` // holds.reservation_id (nullable)
	CreatedAt     time.Time  `json:"created_at"`               // holds.created_at
}

// Live reports whether the hold still blocks its slot at now.
func (h Hold) Live(now time.Time) bool {
	return h.Status == HoldHeld && now.Before(h.ExpiresAt)
}

// EffectiveStatus folds lazy expiry into the stored status.
func (h Hold) EffectiveStatus(now time.Time) HoldStatus {
	if h.Status == HoldHeld && !now.Before(h.ExpiresAt) {
		return HoldExpired
	}
	return h.Status
}

// TableIDs returns the hold's table as a slice for conflict matching.
func (h Hold) TableIDs() []uint64 {
	if h.TableID == nil || *h.TableID == 0 {
		return nil
	}
	return []uint64{*h.TableID}
}
