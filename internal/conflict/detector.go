// Package conflict finds existing reservations and holds whose busy window
// overlaps a requested one.  Detection has no side effects; it runs both
// inside booking transactions and on read paths that explain why a slot is
// blocked.
package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// lookback bounds how far before the window an overlapping entry can start.
// Busy windows are capped at one day by policy.BusyMinutes.
const lookback = 24 * time.Hour

// Query describes the requested busy window.  An empty TableIDs is a
// table-less request that claims the whole venue.
type Query struct {
	VenueID               uint64
	TableIDs              []uint64
	Date                  string
	Time                  string
	Start                 time.Time
	DurationMin           int
	ExcludeReservationIDs []uint64
	ExcludeHoldIDs        []uint64
}

// End returns the exclusive end of the requested window.
func (q Query) End() time.Time { return q.Start.Add(time.Duration(q.DurationMin) * time.Minute) }

// Detector evaluates Queries against a repository.Reader.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect returns every blocking reservation and live hold that overlaps q
// under the table-matching rules.  cfg supplies durations for stored
// entries that have none and the buffer/turn-time added to every entry.
func (d *Detector) Detect(ctx context.Context, r repository.Reader, cfg *model.VenueConfig, q Query, now time.Time) (apperror.ConflictDetail, error) {
	detail := apperror.ConflictDetail{
		VenueID:     q.VenueID,
		Date:        q.Date,
		Time:        q.Time,
		TableIDs:    append([]uint64{}, q.TableIDs...),
		WindowStart: q.Start,
		WindowEnd:   q.End(),
		Entries:     []apperror.ConflictEntry{},
	}
	if q.DurationMin <= 0 {
		return detail, nil
	}
	from, to := q.Start.Add(-lookback), q.End()

	reservations, err := r.ReservationsStartingBetween(ctx, q.VenueID, from, to)
	if err != nil {
		return detail, fmt.Errorf("load reservations: %w", err)
	}
	holds, err := r.HoldsStartingBetween(ctx, q.VenueID, from, to, now)
	if err != nil {
		return detail, fmt.Errorf("load holds: %w", err)
	}

	skipRes := idSet(q.ExcludeReservationIDs)
	skipHold := idSet(q.ExcludeHoldIDs)

	for _, res := range reservations {
		if skipRes[res.ID] || !res.Status.Blocking() {
			continue
		}
		end := res.StartsAt.Add(time.Duration(policy.BusyMinutes(cfg, res.PartySize, res.DurationMin)) * time.Minute)
		if !Overlaps(q.Start, q.End(), res.StartsAt, end) || !TablesCollide(q.TableIDs, res.TableIDs) {
			continue
		}
		detail.Entries = append(detail.Entries, apperror.ConflictEntry{
			ID: res.ID, Type: apperror.EntryReservation, Status: string(res.Status),
			TableIDs: append([]uint64{}, res.TableIDs...),
			Date:     res.Date, Time: res.Time, Start: res.StartsAt, End: end,
		})
	}
	for _, h := range holds {
		if skipHold[h.ID] || !h.Live(now) {
			continue
		}
		end := h.StartsAt.Add(time.Duration(policy.BusyMinutes(cfg, h.PartySize, h.DurationMin)) * time.Minute)
		if !Overlaps(q.Start, q.End(), h.StartsAt, end) || !TablesCollide(q.TableIDs, h.TableIDs()) {
			continue
		}
		ids := h.TableIDs()
		if ids == nil {
			ids = []uint64{}
		}
		detail.Entries = append(detail.Entries, apperror.ConflictEntry{
			ID: h.ID, Type: apperror.EntryHold, Status: string(model.HoldHeld),
			TableIDs: ids, Date: h.Date, Time: h.Time, Start: h.StartsAt, End: end,
		})
	}

	sort.SliceStable(detail.Entries, func(i, j int) bool {
		a, b := detail.Entries[i], detail.Entries[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Type != b.Type {
			return a.Type == apperror.EntryReservation
		}
		return a.ID < b.ID
	})
	return detail, nil
}

// Overlaps is strict half-open interval intersection.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// TablesCollide applies the table-matching policy: a table-less request or
// a table-less existing entry always collides; otherwise the sets must
// share an id.
func TablesCollide(requested, existing []uint64) bool {
	if len(requested) == 0 || len(existing) == 0 {
		return true
	}
	want := idSet(requested)
	for _, id := range existing {
		if want[id] {
			return true
		}
	}
	return false
}

func idSet(ids []uint64) map[uint64]bool {
	m := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
