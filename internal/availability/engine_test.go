package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
)

const (
	tz   = "America/New_York"
	date = "2024-07-04" // Thursday
)

func intp(v int) *int { return &v }

func config() model.VenueConfig {
	return model.VenueConfig{
		Venue: model.Venue{ID: 1, Timezone: tz, DefaultDurationMin: 90},
		Shifts: []model.Shift{
			{ID: 1, VenueID: 1, DayOfWeek: 4, StartTime: "17:00", EndTime: "23:00", IsActive: true},
		},
		Rules: []model.AvailabilityRule{
			{ID: 1, VenueID: 1, MinParty: 1, MaxParty: 4, SlotLengthMin: 90},
			{ID: 2, VenueID: 1, MinParty: 5, MaxParty: 8, SlotLengthMin: 120, BufferMin: 15},
		},
	}
}

type harness struct {
	store  *memory.Store
	engine *Engine
	now    time.Time
}

func newHarness(t *testing.T, cfg model.VenueConfig, tables ...model.Table) *harness {
	t.Helper()
	s := memory.New()
	s.PutVenue(cfg)
	s.PutTables(tables...)
	now := at(t, "12:00")
	return &harness{store: s, engine: NewEngine(s, conflict.NewDetector(), func() time.Time { return now }), now: now}
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	inst, err := localtime.ToInstant(tz, date, clock)
	require.NoError(t, err)
	return inst
}

func fourTables() []model.Table {
	return []model.Table{
		{ID: 1, VenueID: 1, Label: "A1", Capacity: 4, Area: "main", IsActive: true},
		{ID: 2, VenueID: 1, Label: "A2", Capacity: 4, Area: "main", IsActive: true},
		{ID: 3, VenueID: 1, Label: "A3", Capacity: 4, Area: "main", IsActive: true},
		{ID: 4, VenueID: 1, Label: "A4", Capacity: 4, Area: "patio", IsActive: true},
	}
}

func (h *harness) reserve(t *testing.T, clock string, party int, tables ...uint64) model.Reservation {
	t.Helper()
	r, err := h.store.SeedReservation(context.Background(), model.Reservation{
		VenueID: 1, Status: model.StatusConfirmed, Date: date, Time: clock,
		StartsAt: at(t, clock), PartySize: party, TableIDs: tables,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) hold(t *testing.T, clock string, table uint64) model.Hold {
	t.Helper()
	hd, err := h.store.SeedHold(context.Background(), model.Hold{
		VenueID: 1, Token: clock, Status: model.HoldHeld, TableID: &table, Date: date, Time: clock,
		StartsAt: at(t, clock), PartySize: 2, ExpiresAt: h.now.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	return hd
}

func tableIDs(tables []model.Table) []uint64 {
	out := []uint64{}
	for _, t := range tables {
		out = append(out, t.ID)
	}
	return out
}

func TestPacingCapBlocksBucket(t *testing.T) {
	cfg := config()
	cfg.Pacing = []model.PacingRule{{ID: 1, WindowMin: 15, MaxReservations: intp(2), IsActive: true}}
	h := newHarness(t, cfg, fourTables()...)
	h.reserve(t, "19:00", 2, 1)
	h.hold(t, "19:05", 2)

	res, err := h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Equal(t, Stats{Total: 4, Available: 0, Blocked: 4}, res.Stats)
	assert.Len(t, res.Conflicts.Entries, 2)
	require.NotNil(t, res.Pacing)
	assert.Equal(t, 0, res.Pacing.Remaining)
	assert.Equal(t, 2, res.Pacing.Used)

	res, err = h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "7:30 pm", PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, "19:30", res.Requested.Time)
	assert.Equal(t, []uint64{3, 4}, tableIDs(res.Tables))
	assert.Equal(t, 2, res.Pacing.Remaining)
}

func TestPacingTruncationKeepsSmallestTables(t *testing.T) {
	cfg := config()
	cfg.Venue.PacingPerQuarterHour = 1
	h := newHarness(t, cfg,
		model.Table{ID: 1, VenueID: 1, Label: "Z", Capacity: 6, IsActive: true},
		model.Table{ID: 2, VenueID: 1, Label: "B", Capacity: 2, IsActive: true},
		model.Table{ID: 3, VenueID: 1, Label: "A", Capacity: 2, IsActive: true},
	)

	res, err := h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "18:00", PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, tableIDs(res.Tables))
	assert.Equal(t, Stats{Total: 3, Available: 1, Blocked: 2}, res.Stats)
	assert.Empty(t, res.Conflicts.Entries)
}

func TestCoverCap(t *testing.T) {
	cfg := config()
	cfg.Pacing = []model.PacingRule{{ID: 1, WindowMin: 30, MaxCovers: intp(6), IsActive: true}}
	h := newHarness(t, cfg, fourTables()...)
	h.reserve(t, "18:00", 4, 1)

	res, err := h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "18:15", PartySize: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Tables)

	res, err = h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "18:15", PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4}, tableIDs(res.Tables))
}

func TestEmptyResults(t *testing.T) {
	cfg := config()
	cfg.Blackouts = []model.BlackoutDate{{ID: 1, VenueID: 1, Date: "2024-07-11"}}
	h := newHarness(t, cfg, fourTables()...)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{name: "no matching rule", req: Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 9}},
		{name: "outside shift", req: Request{VenueID: 1, Date: date, Time: "16:30", PartySize: 2}},
		{name: "closed weekday", req: Request{VenueID: 1, Date: "2024-07-05", Time: "19:00", PartySize: 2}},
		{name: "blackout", req: Request{VenueID: 1, Date: "2024-07-11", Time: "19:00", PartySize: 2}},
		{name: "no table fits", req: Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 6}},
		{name: "area without tables", req: Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 2, Area: "roof"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.engine.GetAvailability(ctx, tt.req)
			require.NoError(t, err)
			assert.Empty(t, res.Tables)
			assert.Equal(t, Stats{}, res.Stats)
			assert.Equal(t, policy.Hash(&cfg, tt.req.Date), res.PolicyHash)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t, config(), fourTables()...)
	ctx := context.Background()

	_, err := h.engine.GetAvailability(ctx, Request{VenueID: 1, Date: date, Time: "25:00", PartySize: 2})
	assert.ErrorIs(t, err, apperror.ErrInvalidTimeFormat)

	_, err = h.engine.GetAvailability(ctx, Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 0})
	assert.ErrorIs(t, err, apperror.ErrInvalidPartySize)

	_, err = h.engine.GetAvailability(ctx, Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 2, TableID: 99})
	assert.ErrorIs(t, err, apperror.ErrTableNotFound)

	_, err = h.engine.GetAvailability(ctx, Request{VenueID: 2, Date: date, Time: "19:00", PartySize: 2})
	assert.ErrorIs(t, err, apperror.ErrVenueNotFound)
}

func TestTablelessReservationBlocksEverything(t *testing.T) {
	h := newHarness(t, config(), fourTables()...)
	h.reserve(t, "19:00", 2)

	res, err := h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "19:30", PartySize: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Equal(t, 4, res.Stats.Blocked)
	require.Len(t, res.Conflicts.Entries, 1)
	assert.Empty(t, res.Conflicts.Entries[0].TableIDs)
}

func TestExplicitTableAndExclusion(t *testing.T) {
	h := newHarness(t, config(), fourTables()...)
	r := h.reserve(t, "19:00", 2, 2)

	res, err := h.engine.GetAvailability(context.Background(), Request{VenueID: 1, Date: date, Time: "19:00", PartySize: 2, TableID: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Tables)
	assert.Equal(t, 1, res.Stats.Total)

	res, err = h.engine.GetAvailability(context.Background(), Request{
		VenueID: 1, Date: date, Time: "19:00", PartySize: 2, TableID: 2, ExcludeReservationIDs: []uint64{r.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, tableIDs(res.Tables))
	require.NotNil(t, res.Window)
	assert.Equal(t, 90, res.Window.DurationMin)
}

func TestResolveWindow(t *testing.T) {
	cfg := config()
	cfg.Venue.TurnTimeMin = 10

	w, found, err := Resolve(&cfg, date, "19:00", 6)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), w.RuleID)
	assert.Equal(t, 120, w.SlotLengthMin)
	assert.Equal(t, 145, w.DurationMin)
	assert.Equal(t, at(t, "21:25"), w.End)

	w, found, err = Resolve(&cfg, date, "19:00", 20)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 100, w.DurationMin)
}
