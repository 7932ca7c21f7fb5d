package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
)

const (
	tz   = "America/New_York"
	date = "2024-07-04"
)

func fixture(t *testing.T) (*memory.Store, *model.VenueConfig) {
	t.Helper()
	cfg := model.VenueConfig{
		Venue: model.Venue{ID: 1, Timezone: tz, DefaultDurationMin: 90},
		Rules: []model.AvailabilityRule{{ID: 1, MinParty: 1, MaxParty: 4, SlotLengthMin: 90, BufferMin: 20}},
	}
	s := memory.New()
	s.PutVenue(cfg)
	return s, &cfg
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	inst, err := localtime.ToInstant(tz, date, clock)
	require.NoError(t, err)
	return inst
}

func seedReservation(t *testing.T, s *memory.Store, clock string, tables ...uint64) model.Reservation {
	t.Helper()
	r, err := s.SeedReservation(context.Background(), model.Reservation{
		VenueID: 1, Status: model.StatusConfirmed, Date: date, Time: clock,
		StartsAt: at(t, clock), DurationMin: 90, PartySize: 2, TableIDs: tables,
	})
	require.NoError(t, err)
	return r
}

func query(t *testing.T, clock string, tables ...uint64) Query {
	return Query{VenueID: 1, TableIDs: tables, Date: date, Time: clock, Start: at(t, clock), DurationMin: 110}
}

func TestBufferExtendsBusyWindow(t *testing.T) {
	s, cfg := fixture(t)
	res := seedReservation(t, s, "18:00", 1)
	d := NewDetector()
	now := at(t, "12:00")

	detail, err := d.Detect(context.Background(), s, cfg, query(t, "19:45", 1), now)
	require.NoError(t, err)
	require.True(t, detail.HasConflicts())
	assert.Equal(t, res.ID, detail.Entries[0].ID)
	assert.Equal(t, apperror.EntryReservation, detail.Entries[0].Type)
	assert.Equal(t, at(t, "19:50"), detail.Entries[0].End)

	detail, err = d.Detect(context.Background(), s, cfg, query(t, "20:30", 1), now)
	require.NoError(t, err)
	assert.False(t, detail.HasConflicts())
}

func TestTableMatching(t *testing.T) {
	s, cfg := fixture(t)
	seedReservation(t, s, "18:00", 1)
	d := NewDetector()
	now := at(t, "12:00")

	detail, err := d.Detect(context.Background(), s, cfg, query(t, "18:30", 2), now)
	require.NoError(t, err)
	assert.False(t, detail.HasConflicts(), "specific table must not block an unrelated table")

	detail, err = d.Detect(context.Background(), s, cfg, query(t, "18:30"), now)
	require.NoError(t, err)
	assert.True(t, detail.HasConflicts(), "table-less request claims the whole venue")

	detail, err = d.Detect(context.Background(), s, cfg, query(t, "18:30", 3, 1), now)
	require.NoError(t, err)
	assert.True(t, detail.HasConflicts())
}

func TestTablelessHoldBlocksAllTables(t *testing.T) {
	s, cfg := fixture(t)
	now := at(t, "12:00")
	hold, err := s.SeedHold(context.Background(), model.Hold{
		VenueID: 1, Token: "h", Status: model.HoldHeld, Date: date, Time: "19:00",
		StartsAt: at(t, "19:00"), DurationMin: 90, PartySize: 2, ExpiresAt: now.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	d := NewDetector()

	for _, table := range []uint64{1, 2, 3} {
		detail, err := d.Detect(context.Background(), s, cfg, query(t, "19:30", table), now)
		require.NoError(t, err)
		require.Len(t, detail.Entries, 1)
		assert.Equal(t, hold.ID, detail.Entries[0].ID)
		assert.Equal(t, apperror.EntryHold, detail.Entries[0].Type)
		assert.Empty(t, detail.Entries[0].TableIDs)
	}

	// once the hold lapses it stops blocking, without any sweep
	detail, err := d.Detect(context.Background(), s, cfg, query(t, "19:30", 1), now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.False(t, detail.HasConflicts())
}

func TestExclusionsAndOrdering(t *testing.T) {
	s, cfg := fixture(t)
	first := seedReservation(t, s, "18:00", 1)
	second := seedReservation(t, s, "19:00", 1)
	d := NewDetector()
	now := at(t, "12:00")

	detail, err := d.Detect(context.Background(), s, cfg, query(t, "18:45", 1), now)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 2)
	assert.Equal(t, first.ID, detail.Entries[0].ID)
	assert.Equal(t, second.ID, detail.Entries[1].ID)

	q := query(t, "18:45", 1)
	q.ExcludeReservationIDs = []uint64{first.ID}
	detail, err = d.Detect(context.Background(), s, cfg, q, now)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 1)
	assert.Equal(t, second.ID, detail.Entries[0].ID)
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := time.Date(2024, 7, 4, 18, 0, 0, 0, time.UTC)
	hour := time.Hour
	assert.True(t, Overlaps(base, base.Add(hour), base.Add(30*time.Minute), base.Add(2*hour)))
	assert.False(t, Overlaps(base, base.Add(hour), base.Add(hour), base.Add(2*hour)))
	assert.False(t, Overlaps(base.Add(hour), base.Add(2*hour), base, base.Add(hour)))
}

func TestTablesCollide(t *testing.T) {
	assert.True(t, TablesCollide(nil, []uint64{4}))
	assert.True(t, TablesCollide([]uint64{4}, nil))
	assert.True(t, TablesCollide([]uint64{1, 4}, []uint64{4, 9}))
	assert.False(t, TablesCollide([]uint64{1}, []uint64{2}))
}
