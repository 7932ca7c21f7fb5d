package memory

import (
	"context"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// SetClock overrides the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SeedReservation stores r through a regular transaction so its claims are
// registered.  StartsAt must already be set.
func (s *Store) SeedReservation(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertReservation(ctx, &r)
	})
	return r, err
}

// SeedHold stores h through a regular transaction.
func (s *Store) SeedHold(ctx context.Context, h model.Hold) (model.Hold, error) {
	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertHold(ctx, &h)
	})
	return h, err
}

// Demo returns a store loaded with DemoVenue and DemoTables, used by the
// memory driver in development.
func Demo() *Store {
	s := New()
	s.PutVenue(DemoVenue())
	s.PutTables(DemoTables()...)
	return s
}

// DemoVenue is a small dinner venue open Tuesday to Saturday with late
// service on Friday and Saturday.
func DemoVenue() model.VenueConfig {
	return model.VenueConfig{
		Venue: model.Venue{
			ID: 1, Name: "Demo Bistro", Timezone: "America/New_York",
			DefaultDurationMin: 90, TurnTimeMin: 15, HoldTTLMin: 10,
			CancelWindowMin: 120, ModifyWindowMin: 240,
		},
		Shifts: []model.Shift{
			{ID: 1, VenueID: 1, DayOfWeek: 2, StartTime: "17:00", EndTime: "22:00", IsActive: true},
			{ID: 2, VenueID: 1, DayOfWeek: 3, StartTime: "17:00", EndTime: "22:00", IsActive: true},
			{ID: 3, VenueID: 1, DayOfWeek: 4, StartTime: "17:00", EndTime: "22:00", IsActive: true},
			{ID: 4, VenueID: 1, DayOfWeek: 5, StartTime: "17:00", EndTime: "01:00", IsActive: true},
			{ID: 5, VenueID: 1, DayOfWeek: 6, StartTime: "17:00", EndTime: "01:00", IsActive: true},
		},
		Rules: []model.AvailabilityRule{
			{ID: 1, VenueID: 1, MinParty: 1, MaxParty: 2, SlotLengthMin: 75, BufferMin: 10},
			{ID: 2, VenueID: 1, MinParty: 3, MaxParty: 6, SlotLengthMin: 105, BufferMin: 15},
			{ID: 3, VenueID: 1, MinParty: 7, MaxParty: 12, SlotLengthMin: 150, BufferMin: 20},
		},
		Pacing: []model.PacingRule{{ID: 1, VenueID: 1, WindowMin: 15, MaxReservations: intPtr(4), IsActive: true}},
		Buffer: model.ServiceBuffer{VenueID: 1, AfterMin: 45},
	}
}

// DemoTables are the tables of DemoVenue.
func DemoTables() []model.Table {
	return []model.Table{
		{ID: 1, VenueID: 1, Label: "T1", Capacity: 2, Area: "main", IsActive: true},
		{ID: 2, VenueID: 1, Label: "T2", Capacity: 2, Area: "main", IsActive: true},
		{ID: 3, VenueID: 1, Label: "T3", Capacity: 4, Area: "main", IsActive: true},
		{ID: 4, VenueID: 1, Label: "T4", Capacity: 4, Area: "patio", IsActive: true},
		{ID: 5, VenueID: 1, Label: "T5", Capacity: 8, Area: "main", IsActive: true},
	}
}

func intPtr(v int) *int { return &v }
