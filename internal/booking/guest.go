package booking

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// minutesUntil is the whole number of minutes from now to start.
func minutesUntil(start, now time.Time) int {
	return int(math.Floor(start.Sub(now).Minutes()))
}

func (m *Manager) checkWindow(r *model.Reservation, windowMin int, action string) error {
	if windowMin <= 0 {
		return nil
	}
	left := minutesUntil(r.StartsAt, m.now())
	if left < windowMin {
		return apperror.ErrPolicyWindowClosed.WithMessage(
			"%s closes %d minutes before the reservation, %d minutes left", action, windowMin, left)
	}
	return nil
}

// GuestCancel cancels on behalf of the guest, honouring the venue's
// cancellation window.
func (m *Manager) GuestCancel(ctx context.Context, venueID, id uint64) (*ReservationResult, error) {
	cfg, err := m.loadConfig(ctx, venueID)
	if err != nil {
		return nil, err
	}
	cur, err := m.store.GetReservation(ctx, venueID, id)
	if err != nil {
		return nil, err
	}
	if cur.Status.Terminal() {
		return nil, apperror.ErrInvalidTransition.WithMessage("reservation %d is already %s", cur.ID, cur.Status)
	}
	if err := m.checkWindow(cur, cfg.Venue.CancelWindowMin, "cancellation"); err != nil {
		return nil, err
	}
	return m.Cancel(ctx, venueID, id)
}

// guestForbidden lists the booking fields a guest tried to set.
func guestForbidden(in UpdateInput) []string {
	var fields []string
	if in.Status != nil {
		fields = append(fields, "status")
	}
	if in.TableIDs != nil {
		fields = append(fields, "table_ids")
	}
	if in.Date != nil {
		fields = append(fields, "date")
	}
	if in.Time != nil {
		fields = append(fields, "time")
	}
	if in.PartySize != nil {
		fields = append(fields, "party_size")
	}
	if in.DurationMin != nil {
		fields = append(fields, "duration_min")
	}
	return fields
}

// GuestUpdateContact lets a guest edit contact details and notes only.
func (m *Manager) GuestUpdateContact(ctx context.Context, in UpdateInput) (*ReservationResult, error) {
	if fields := guestForbidden(in); len(fields) > 0 {
		return nil, apperror.ForbiddenFields(fields...)
	}
	return m.UpdateReservation(ctx, UpdateInput{
		VenueID:       in.VenueID,
		ReservationID: in.ReservationID,
		Guest:         in.Guest,
		Notes:         in.Notes,
	})
}

// RescheduleInput moves a guest's booking to another slot.
type RescheduleInput struct {
	VenueID       uint64 `json:"-"`
	ReservationID uint64 `json:"-"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

type rescheduled struct {
	before    model.Reservation
	cancelled model.Reservation
	created   model.Reservation
}

// GuestReschedule cancels the reservation and rebinds the guest to a table
// the availability engine picks for the new slot, atomically.  Both the
// cancel and modify windows apply.
func (m *Manager) GuestReschedule(ctx context.Context, in RescheduleInput) (*ReservationResult, error) {
	cfg, err := m.loadConfig(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	cur, err := m.store.GetReservation(ctx, in.VenueID, in.ReservationID)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.StatusPending && cur.Status != model.StatusConfirmed {
		return nil, apperror.ErrInvalidTransition.WithMessage("reservation %d is %s and cannot be rescheduled", cur.ID, cur.Status)
	}
	if err := m.checkWindow(cur, cfg.Venue.CancelWindowMin, "cancellation"); err != nil {
		return nil, err
	}
	if err := m.checkWindow(cur, cfg.Venue.ModifyWindowMin, "modification"); err != nil {
		return nil, err
	}
	win, _, err := availability.Resolve(cfg, in.Date, in.Time, cur.PartySize)
	if err != nil {
		return nil, err
	}
	tableID, err := m.pickTable(ctx, cfg, win.Date, win.Time, cur.PartySize, []uint64{cur.ID})
	if err != nil {
		return nil, err
	}
	dur := policy.SlotLength(cfg, cur.PartySize, 0)

	g := guard{
		venueID: in.VenueID,
		cfg:     cfg,
		locks: []string{
			SlotKey(in.VenueID, cur.Date, cur.Time),
			SlotKey(in.VenueID, win.Date, win.Time),
		},
		checks: []conflict.Query{{
			VenueID:               in.VenueID,
			TableIDs:              []uint64{tableID},
			Date:                  win.Date,
			Time:                  win.Time,
			Start:                 win.Start,
			DurationMin:           policy.BusyMinutes(cfg, cur.PartySize, dur),
			ExcludeReservationIDs: []uint64{cur.ID},
		}},
	}
	out, err := runGuarded(ctx, m, g, func(ctx context.Context, tx repository.Tx, now time.Time) (rescheduled, error) {
		fresh, err := tx.GetReservation(ctx, in.VenueID, in.ReservationID)
		if err != nil {
			return rescheduled{}, err
		}
		if fresh.Status != model.StatusPending && fresh.Status != model.StatusConfirmed {
			return rescheduled{}, apperror.ErrInvalidTransition.WithMessage("reservation %d is %s and cannot be rescheduled", fresh.ID, fresh.Status)
		}
		cancelled := fresh.Clone()
		cancelled.Status = model.StatusCancelled
		if err := tx.UpdateReservation(ctx, &cancelled); err != nil {
			return rescheduled{}, err
		}
		from := fresh.ID
		next := model.Reservation{
			VenueID:         in.VenueID,
			Status:          fresh.Status,
			Date:            win.Date,
			Time:            win.Time,
			StartsAt:        win.Start.UTC(),
			DurationMin:     dur,
			PartySize:       fresh.PartySize,
			TableIDs:        []uint64{tableID},
			Guest:           fresh.Guest,
			Notes:           fresh.Notes,
			RescheduledFrom: &from,
		}
		if err := tx.InsertReservation(ctx, &next); err != nil {
			return rescheduled{}, err
		}
		return rescheduled{before: *fresh, cancelled: cancelled, created: next}, nil
	})
	if err != nil {
		return nil, err
	}
	rs, err := out.unwrap()
	if err != nil {
		return nil, err
	}
	m.log.Info("reservation rescheduled",
		zap.Uint64("venue_id", in.VenueID),
		zap.Uint64("from", rs.before.ID),
		zap.Uint64("to", rs.created.ID),
		zap.String("date", rs.created.Date),
		zap.String("time", rs.created.Time),
	)
	at := m.now()
	events := diffEvents(rs.before, rs.cancelled, at)
	events = append(events, createdEvents(rs.created, at)...)
	prev := rs.cancelled
	return &ReservationResult{
		Reservation:        rs.created,
		Previous:           &prev,
		Events:             events,
		CacheInvalidations: invalidations(in.VenueID, rs.before.Date, rs.created.Date),
	}, nil
}
