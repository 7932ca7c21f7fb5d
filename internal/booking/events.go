package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-booking/internal/model"
)

// EventType tags a domain event produced by a booking operation.
type EventType string

const (
	EventCreated   EventType = "created"
	EventConfirmed EventType = "confirmed"
	EventCancelled EventType = "cancelled"
	EventSeated    EventType = "seated"
	EventCompleted EventType = "completed"
	EventModified  EventType = "modified"
)

// Event is handed back to the caller for notification and webhook
// dispatch; the manager never delivers it itself.
type Event struct {
	ID            string                  `json:"id"`
	Type          EventType               `json:"type"`
	VenueID       uint64                  `json:"venue_id"`
	ReservationID uint64                  `json:"reservation_id"`
	Status        model.ReservationStatus `json:"status"`
	Date          string                  `json:"date"`
	Time          string                  `json:"time"`
	TableIDs      []uint64                `json:"table_ids"`
	PartySize     int                     `json:"party_size"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

// CacheInvalidation names a (venue, date) whose cached availability is stale.
type CacheInvalidation struct {
	VenueID uint64 `json:"venue_id"`
	Date    string `json:"date"`
}

func newEvent(t EventType, r model.Reservation, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		VenueID:       r.VenueID,
		ReservationID: r.ID,
		Status:        r.Status,
		Date:          r.Date,
		Time:          r.Time,
		TableIDs:      append([]uint64{}, r.TableIDs...),
		PartySize:     r.PartySize,
		OccurredAt:    at,
	}
}

var statusEvents = map[model.ReservationStatus]EventType{
	model.StatusConfirmed: EventConfirmed,
	model.StatusSeated:    EventSeated,
	model.StatusCompleted: EventCompleted,
	model.StatusCancelled: EventCancelled,
}

// createdEvents are emitted for a new reservation.
func createdEvents(r model.Reservation, at time.Time) []Event {
	out := []Event{newEvent(EventCreated, r, at)}
	if r.Status == model.StatusConfirmed {
		out = append(out, newEvent(EventConfirmed, r, at))
	}
	return out
}

// diffEvents derives events from a before/after pair: one per status change
// and a single "modified" when any other booking field moved.
func diffEvents(before, after model.Reservation, at time.Time) []Event {
	var out []Event
	if before.Status != after.Status {
		if t, ok := statusEvents[after.Status]; ok {
			out = append(out, newEvent(t, after, at))
		}
	}
	if fieldsChanged(before, after) {
		out = append(out, newEvent(EventModified, after, at))
	}
	return out
}

func fieldsChanged(a, b model.Reservation) bool {
	return a.Date != b.Date ||
		a.Time != b.Time ||
		a.PartySize != b.PartySize ||
		a.DurationMin != b.DurationMin ||
		a.Guest != b.Guest ||
		a.Notes != b.Notes ||
		!sameIDs(a.TableIDs, b.TableIDs)
}

func sameIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func invalidations(venueID uint64, dates ...string) []CacheInvalidation {
	seen := make(map[string]bool, len(dates))
	out := make([]CacheInvalidation, 0, len(dates))
	for _, d := range dates {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, CacheInvalidation{VenueID: venueID, Date: d})
	}
	return out
}
