package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// ReservationInput creates a reservation either directly or by converting
// a hold.  With HoldID set the slot, party and table default to the hold's;
// a supplied Date/Time must match the hold exactly.
type ReservationInput struct {
	VenueID     uint64                  `json:"venue_id"`
	HoldID      uint64                  `json:"hold_id,omitempty"`
	Date        string                  `json:"date"`
	Time        string                  `json:"time"`
	PartySize   int                     `json:"party_size"`
	TableIDs    []uint64                `json:"table_ids,omitempty"`
	AutoAssign  bool                    `json:"auto_assign,omitempty"`
	Status      model.ReservationStatus `json:"status,omitempty"`
	DurationMin int                     `json:"duration_min,omitempty"`
	Guest       model.GuestContact      `json:"guest"`
	Notes       string                  `json:"notes,omitempty"`
}

// ReservationResult is returned by every reservation write.  Previous is
// set by a reschedule and points at the cancelled original.
type ReservationResult struct {
	Reservation        model.Reservation   `json:"reservation"`
	Previous           *model.Reservation  `json:"previous,omitempty"`
	Events             []Event             `json:"events"`
	CacheInvalidations []CacheInvalidation `json:"cache_invalidations"`
}

func initialStatus(s model.ReservationStatus) (model.ReservationStatus, error) {
	switch s {
	case "":
		return model.StatusConfirmed, nil
	case model.StatusPending, model.StatusConfirmed:
		return s, nil
	}
	return "", apperror.ErrInvalidInput.WithMessage("reservations are created PENDING or CONFIRMED, got %q", s)
}

// CreateReservation books a slot.
func (m *Manager) CreateReservation(ctx context.Context, in ReservationInput) (*ReservationResult, error) {
	status, err := initialStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if in.DurationMin < 0 {
		return nil, apperror.ErrInvalidInput.WithMessage("duration_min must not be negative")
	}
	cfg, err := m.loadConfig(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	if in.HoldID != 0 {
		return m.convertHold(ctx, cfg, in, status)
	}

	win, _, err := availability.Resolve(cfg, in.Date, in.Time, in.PartySize)
	if err != nil {
		return nil, err
	}
	tables := dedupeIDs(in.TableIDs)
	switch {
	case len(tables) > 0:
		if err := m.checkTables(ctx, in.VenueID, tables, in.PartySize); err != nil {
			return nil, err
		}
	case in.AutoAssign:
		id, err := m.pickTable(ctx, cfg, win.Date, win.Time, in.PartySize, nil)
		if err != nil {
			return nil, err
		}
		tables = []uint64{id}
	}
	dur := policy.SlotLength(cfg, in.PartySize, in.DurationMin)

	g := guard{
		venueID: in.VenueID,
		cfg:     cfg,
		locks:   []string{SlotKey(in.VenueID, win.Date, win.Time)},
		checks: []conflict.Query{{
			VenueID:     in.VenueID,
			TableIDs:    tables,
			Date:        win.Date,
			Time:        win.Time,
			Start:       win.Start,
			DurationMin: policy.BusyMinutes(cfg, in.PartySize, dur),
		}},
	}
	out, err := runGuarded(ctx, m, g, func(ctx context.Context, tx repository.Tx, now time.Time) (model.Reservation, error) {
		r := model.Reservation{
			VenueID:     in.VenueID,
			Status:      status,
			Date:        win.Date,
			Time:        win.Time,
			StartsAt:    win.Start.UTC(),
			DurationMin: dur,
			PartySize:   in.PartySize,
			TableIDs:    tables,
			Guest:       in.Guest,
			Notes:       in.Notes,
		}
		if err := tx.InsertReservation(ctx, &r); err != nil {
			return model.Reservation{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r, err := out.unwrap()
	if err != nil {
		return nil, err
	}
	return m.created(r), nil
}

func (m *Manager) created(r model.Reservation) *ReservationResult {
	m.log.Info("reservation created",
		zap.Uint64("venue_id", r.VenueID),
		zap.Uint64("reservation_id", r.ID),
		zap.String("date", r.Date),
		zap.String("time", r.Time),
		zap.String("status", string(r.Status)),
	)
	return &ReservationResult{
		Reservation:        r,
		Events:             createdEvents(r, m.now()),
		CacheInvalidations: invalidations(r.VenueID, r.Date),
	}
}

// holdUsable maps a hold's effective status to the conversion error.
func holdUsable(h model.Hold, now time.Time) error {
	switch h.EffectiveStatus(now) {
	case model.HoldConsumed:
		return apperror.ErrHoldAlreadyConsumed.WithMessage("hold %d was already converted", h.ID)
	case model.HoldExpired:
		return apperror.ErrHoldExpired.WithMessage("hold %d expired at %s", h.ID, h.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (m *Manager) convertHold(ctx context.Context, cfg *model.VenueConfig, in ReservationInput, status model.ReservationStatus) (*ReservationResult, error) {
	hold, err := m.store.GetHold(ctx, in.VenueID, in.HoldID)
	if err != nil {
		return nil, err
	}
	if in.Date != "" && in.Date != hold.Date {
		return nil, apperror.ErrHoldSlotMismatch.WithMessage("hold %d is for %s, not %s", hold.ID, hold.Date, in.Date)
	}
	if in.Time != "" {
		clock, err := localtime.NormalizeTime(in.Time)
		if err != nil {
			return nil, err
		}
		if clock != hold.Time {
			return nil, apperror.ErrHoldSlotMismatch.WithMessage("hold %d is for %s, not %s", hold.ID, hold.Time, clock)
		}
	}
	tables := dedupeIDs(in.TableIDs)
	if len(tables) > 0 && hold.TableID != nil && !sameIDs(tables, hold.TableIDs()) {
		return nil, apperror.ErrHoldSlotMismatch.WithMessage("hold %d is for table %d", hold.ID, *hold.TableID)
	}
	if len(tables) == 0 {
		tables = hold.TableIDs()
	}
	if err := holdUsable(*hold, m.now()); err != nil {
		return nil, err
	}
	party := hold.PartySize
	if in.PartySize != 0 {
		if in.PartySize < 0 {
			return nil, apperror.ErrInvalidPartySize.WithMessage("party size must be positive, got %d", in.PartySize)
		}
		party = in.PartySize
	}
	if err := m.checkTables(ctx, in.VenueID, tables, party); err != nil {
		return nil, err
	}
	dur := policy.SlotLength(cfg, party, in.DurationMin)
	if in.DurationMin == 0 && party == hold.PartySize {
		dur = policy.SlotLength(cfg, party, hold.DurationMin)
	}

	g := guard{
		venueID: in.VenueID,
		cfg:     cfg,
		locks:   []string{SlotKey(in.VenueID, hold.Date, hold.Time)},
		checks: []conflict.Query{{
			VenueID:        in.VenueID,
			TableIDs:       tables,
			Date:           hold.Date,
			Time:           hold.Time,
			Start:          hold.StartsAt,
			DurationMin:    policy.BusyMinutes(cfg, party, dur),
			ExcludeHoldIDs: []uint64{hold.ID},
		}},
	}
	out, err := runGuarded(ctx, m, g, func(ctx context.Context, tx repository.Tx, now time.Time) (model.Reservation, error) {
		cur, err := tx.GetHold(ctx, in.VenueID, hold.ID)
		if err != nil {
			return model.Reservation{}, err
		}
		if err := holdUsable(*cur, now); err != nil {
			return model.Reservation{}, err
		}
		holdID := cur.ID
		r := model.Reservation{
			VenueID:     in.VenueID,
			Status:      status,
			Date:        cur.Date,
			Time:        cur.Time,
			StartsAt:    cur.StartsAt.UTC(),
			DurationMin: dur,
			PartySize:   party,
			TableIDs:    tables,
			Guest:       in.Guest,
			Notes:       in.Notes,
			HoldID:      &holdID,
		}
		if err := tx.InsertReservation(ctx, &r); err != nil {
			return model.Reservation{}, err
		}
		if err := tx.ConsumeHold(ctx, in.VenueID, holdID, r.ID); err != nil {
			return model.Reservation{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r, err := out.unwrap()
	if err != nil {
		return nil, err
	}
	return m.created(r), nil
}

// UpdateInput changes a reservation.  Nil fields are left alone.
type UpdateInput struct {
	VenueID       uint64                   `json:"-"`
	ReservationID uint64                   `json:"-"`
	Date          *string                  `json:"date,omitempty"`
	Time          *string                  `json:"time,omitempty"`
	PartySize     *int                     `json:"party_size,omitempty"`
	TableIDs      *[]uint64                `json:"table_ids,omitempty"`
	DurationMin   *int                     `json:"duration_min,omitempty"`
	Status        *model.ReservationStatus `json:"status,omitempty"`
	Guest         *model.GuestContact      `json:"guest,omitempty"`
	Notes         *string                  `json:"notes,omitempty"`
}

// applyUpdate returns cur with in applied.  Terminal reservations are
// immutable.
func applyUpdate(cfg *model.VenueConfig, cur model.Reservation, in UpdateInput) (model.Reservation, error) {
	if cur.Status.Terminal() {
		return cur, apperror.ErrInvalidTransition.WithMessage("reservation %d is %s and cannot change", cur.ID, cur.Status)
	}
	next := cur.Clone()
	if in.Status != nil && *in.Status != cur.Status {
		if !in.Status.Valid() {
			return cur, apperror.ErrInvalidInput.WithMessage("unknown status %q", *in.Status)
		}
		if !model.CanTransition(cur.Status, *in.Status) {
			return cur, apperror.ErrInvalidTransition.WithMessage("cannot move reservation %d from %s to %s", cur.ID, cur.Status, *in.Status)
		}
		next.Status = *in.Status
	}
	if in.Date != nil {
		if _, err := localtime.ParseDate(*in.Date); err != nil {
			return cur, err
		}
		next.Date = *in.Date
	}
	if in.Time != nil {
		clock, err := localtime.NormalizeTime(*in.Time)
		if err != nil {
			return cur, err
		}
		next.Time = clock
	}
	if in.PartySize != nil {
		if *in.PartySize <= 0 {
			return cur, apperror.ErrInvalidPartySize.WithMessage("party size must be positive, got %d", *in.PartySize)
		}
		next.PartySize = *in.PartySize
	}
	if in.TableIDs != nil {
		next.TableIDs = dedupeIDs(*in.TableIDs)
	}
	switch {
	case in.DurationMin != nil:
		if *in.DurationMin < 0 {
			return cur, apperror.ErrInvalidInput.WithMessage("duration_min must not be negative")
		}
		next.DurationMin = policy.SlotLength(cfg, next.PartySize, *in.DurationMin)
	case next.PartySize != cur.PartySize:
		next.DurationMin = policy.SlotLength(cfg, next.PartySize, 0)
	}
	if in.Guest != nil {
		next.Guest = *in.Guest
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	if next.Date != cur.Date || next.Time != cur.Time {
		start, err := localtime.ToInstant(cfg.Venue.Timezone, next.Date, next.Time)
		if err != nil {
			return cur, err
		}
		next.StartsAt = start.UTC()
	}
	return next, nil
}

// slotChanged reports whether the update moves the booking's footprint.
func slotChanged(a, b model.Reservation) bool {
	return a.Date != b.Date ||
		a.Time != b.Time ||
		a.PartySize != b.PartySize ||
		a.DurationMin != b.DurationMin ||
		!sameIDs(a.TableIDs, b.TableIDs)
}

type change struct {
	before model.Reservation
	after  model.Reservation
}

// errSlotMoved aborts an update whose reservation changed slot between the
// first read and taking the slot locks; the update is retried.
var errSlotMoved = errors.New("reservation moved concurrently")

const updateAttempts = 3

// UpdateReservation applies a staff change, including status transitions.
func (m *Manager) UpdateReservation(ctx context.Context, in UpdateInput) (*ReservationResult, error) {
	cfg, err := m.loadConfig(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	var c change
	for attempt := 1; ; attempt++ {
		c, err = m.updateOnce(ctx, cfg, in)
		if !errors.Is(err, errSlotMoved) || attempt == updateAttempts {
			break
		}
		m.log.Debug("reservation moved, retrying update", zap.Uint64("reservation_id", in.ReservationID), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}
	m.log.Info("reservation updated",
		zap.Uint64("venue_id", in.VenueID),
		zap.Uint64("reservation_id", c.after.ID),
		zap.String("from", string(c.before.Status)),
		zap.String("to", string(c.after.Status)),
	)
	return &ReservationResult{
		Reservation:        c.after,
		Events:             diffEvents(c.before, c.after, m.now()),
		CacheInvalidations: invalidations(in.VenueID, c.before.Date, c.after.Date),
	}, nil
}

// updateOnce locks the current and target slots seen outside the
// transaction, then re-derives the change from the row read under those
// locks and checks conflicts for that version.
func (m *Manager) updateOnce(ctx context.Context, cfg *model.VenueConfig, in UpdateInput) (change, error) {
	cur, err := m.store.GetReservation(ctx, in.VenueID, in.ReservationID)
	if err != nil {
		return change{}, err
	}
	next, err := applyUpdate(cfg, *cur, in)
	if err != nil {
		return change{}, err
	}
	if !sameIDs(cur.TableIDs, next.TableIDs) || next.PartySize != cur.PartySize {
		if err := m.checkTables(ctx, in.VenueID, next.TableIDs, next.PartySize); err != nil {
			return change{}, err
		}
	}

	locks := []string{
		SlotKey(in.VenueID, cur.Date, cur.Time),
		SlotKey(in.VenueID, next.Date, next.Time),
	}
	race := updateQuery(cfg, next)
	g := guard{venueID: in.VenueID, cfg: cfg, locks: locks, race: &race}
	out, err := runGuarded(ctx, m, g, func(ctx context.Context, tx repository.Tx, now time.Time) (change, error) {
		fresh, err := tx.GetReservation(ctx, in.VenueID, in.ReservationID)
		if err != nil {
			return change{}, err
		}
		after, err := applyUpdate(cfg, *fresh, in)
		if err != nil {
			return change{}, err
		}
		if !holdsLock(locks, in.VenueID, *fresh) || !holdsLock(locks, in.VenueID, after) {
			return change{}, errSlotMoved
		}
		if slotChanged(*fresh, after) && after.Status.Blocking() {
			detail, err := m.detector.Detect(ctx, tx, cfg, updateQuery(cfg, after), now)
			if err != nil {
				return change{}, err
			}
			if detail.HasConflicts() {
				return change{}, &conflictAbort{detail: detail}
			}
		}
		after.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, &after); err != nil {
			return change{}, err
		}
		return change{before: *fresh, after: after}, nil
	})
	if err != nil {
		return change{}, err
	}
	return out.unwrap()
}

func updateQuery(cfg *model.VenueConfig, r model.Reservation) conflict.Query {
	return conflict.Query{
		VenueID:               r.VenueID,
		TableIDs:              r.TableIDs,
		Date:                  r.Date,
		Time:                  r.Time,
		Start:                 r.StartsAt,
		DurationMin:           policy.BusyMinutes(cfg, r.PartySize, r.DurationMin),
		ExcludeReservationIDs: []uint64{r.ID},
	}
}

func holdsLock(locks []string, venueID uint64, r model.Reservation) bool {
	key := SlotKey(venueID, r.Date, r.Time)
	for _, l := range locks {
		if l == key {
			return true
		}
	}
	return false
}

// ChangeStatus moves a reservation through the status state machine.
func (m *Manager) ChangeStatus(ctx context.Context, venueID, id uint64, to model.ReservationStatus) (*ReservationResult, error) {
	return m.UpdateReservation(ctx, UpdateInput{VenueID: venueID, ReservationID: id, Status: &to})
}

// Cancel cancels a reservation on behalf of staff.
func (m *Manager) Cancel(ctx context.Context, venueID, id uint64) (*ReservationResult, error) {
	return m.ChangeStatus(ctx, venueID, id, model.StatusCancelled)
}
