package availability

import (
	"context"
	"time"

	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
)

// limit is one pacing constraint evaluated in its own bucket width.
type limit struct {
	window       int
	reservations int // <= 0 means unlimited
	covers       int // <= 0 means unlimited
}

func limits(cfg *model.VenueConfig) []limit {
	var out []limit
	for _, p := range cfg.Pacing {
		if !p.IsActive {
			continue
		}
		l := limit{window: p.Window()}
		if v, ok := p.ReservationCap(); ok {
			l.reservations = v
		}
		if v, ok := p.CoverCap(); ok {
			l.covers = v
		}
		if l.reservations > 0 || l.covers > 0 {
			out = append(out, l)
		}
	}
	if cfg.Venue.PacingPerQuarterHour > 0 {
		out = append(out, limit{window: model.DefaultPacingWindowMin, reservations: cfg.Venue.PacingPerQuarterHour})
	}
	return out
}

// pacing counts same-date reservations and live holds that share the
// request's bucket under each limit and returns the tightest remainder.
func (e *Engine) pacing(ctx context.Context, cfg *model.VenueConfig, req Request, win Window, now time.Time) (*Pacing, error) {
	ls := limits(cfg)
	out := &Pacing{WindowMin: model.DefaultPacingWindowMin, Remaining: -1}
	if len(ls) == 0 {
		return out, nil
	}

	loc, err := localtime.LoadZone(cfg.Venue.Timezone)
	if err != nil {
		return nil, err
	}
	next, err := localtime.AddDays(win.Date, 1)
	if err != nil {
		return nil, err
	}
	dayStart, err := localtime.StartOfDay(loc, win.Date)
	if err != nil {
		return nil, err
	}
	dayEnd, err := localtime.StartOfDay(loc, next)
	if err != nil {
		return nil, err
	}

	reservations, err := e.source.ReservationsStartingBetween(ctx, req.VenueID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	holds, err := e.source.HoldsStartingBetween(ctx, req.VenueID, dayStart, dayEnd, now)
	if err != nil {
		return nil, err
	}

	type booking struct {
		minute int
		covers int
	}
	var bookings []booking
	skipRes := make(map[uint64]bool, len(req.ExcludeReservationIDs))
	for _, id := range req.ExcludeReservationIDs {
		skipRes[id] = true
	}
	skipHold := make(map[uint64]bool, len(req.ExcludeHoldIDs))
	for _, id := range req.ExcludeHoldIDs {
		skipHold[id] = true
	}
	for _, r := range reservations {
		if skipRes[r.ID] || r.Date != win.Date || !r.Status.Blocking() {
			continue
		}
		if m, err := localtime.MinuteOfDay(r.Time); err == nil {
			bookings = append(bookings, booking{minute: m, covers: r.PartySize})
		}
	}
	for _, h := range holds {
		if skipHold[h.ID] || h.Date != win.Date || !h.Live(now) {
			continue
		}
		if m, err := localtime.MinuteOfDay(h.Time); err == nil {
			bookings = append(bookings, booking{minute: m, covers: h.PartySize})
		}
	}

	minute, err := localtime.MinuteOfDay(win.Time)
	if err != nil {
		return nil, err
	}
	for _, l := range ls {
		bucket := minute / l.window
		used, covers := 0, 0
		for _, b := range bookings {
			if b.minute/l.window == bucket {
				used++
				covers += b.covers
			}
		}
		remaining := -1
		if l.reservations > 0 {
			remaining = max(0, l.reservations-used)
		}
		if l.covers > 0 && covers+req.PartySize > l.covers {
			remaining = 0
		}
		if remaining >= 0 && (out.Remaining < 0 || remaining < out.Remaining) {
			out.Remaining = remaining
			out.WindowMin = l.window
			out.Used = used
		}
	}
	return out, nil
}
