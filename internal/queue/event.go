// Package queue defines the booking event payload exchanged over RabbitMQ
// and the consumer that journals it.
package queue

import (
	"time"

	"github.com/iliyamo/venue-booking/internal/booking"
)

// BookingEvent is published for every domain event a booking operation
// produced.  It carries enough of the reservation for downstream consumers
// to notify or audit without querying the primary database.
type BookingEvent struct {
	EventID       string   `json:"event_id"`
	Type          string   `json:"type"`
	VenueID       uint64   `json:"venue_id"`
	ReservationID uint64   `json:"reservation_id"`
	Status        string   `json:"status"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	TableIDs      []uint64 `json:"table_ids"`
	PartySize     int      `json:"party_size"`
	OccurredAt    string   `json:"occurred_at"`
}

// NewBookingEvent converts a core event into its wire payload.
func NewBookingEvent(e booking.Event) BookingEvent {
	return BookingEvent{
		EventID:       e.ID,
		Type:          string(e.Type),
		VenueID:       e.VenueID,
		ReservationID: e.ReservationID,
		Status:        string(e.Status),
		Date:          e.Date,
		Time:          e.Time,
		TableIDs:      append([]uint64{}, e.TableIDs...),
		PartySize:     e.PartySize,
		OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339),
	}
}
