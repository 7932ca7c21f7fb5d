package memory

import (
	"context"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// memTx is only used while Store.writer is held.
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) ReservationsStartingBetween(ctx context.Context, venueID uint64, from, to time.Time) ([]model.Reservation, error) {
	return t.s.ReservationsStartingBetween(ctx, venueID, from, to)
}

func (t *memTx) HoldsStartingBetween(ctx context.Context, venueID uint64, from, to, now time.Time) ([]model.Hold, error) {
	return t.s.HoldsStartingBetween(ctx, venueID, from, to, now)
}

// LockSlot is satisfied by the store-wide writer lock.
func (t *memTx) LockSlot(ctx context.Context, key string) error {
	return ctx.Err()
}

func (t *memTx) ExpireHolds(ctx context.Context, venueID uint64, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, h := range t.s.holds {
		if h.VenueID != venueID || h.Status != model.HoldHeld || now.Before(h.ExpiresAt) {
			continue
		}
		h := h
		h.Status = model.HoldExpired
		t.undo = append(t.undo, func() { h.Status = model.HoldHeld })
		t.releaseClaims(claimOwner{hold: true, id: h.ID})
		n++
	}
	return n, nil
}

func (t *memTx) GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error) {
	return t.s.GetReservation(ctx, venueID, id)
}

func (t *memTx) GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error) {
	return t.s.GetHold(ctx, venueID, id)
}

func (t *memTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	// A converted hold hands its claim over to the reservation.
	if r.HoldID != nil {
		t.releaseClaims(claimOwner{hold: true, id: *r.HoldID})
	}
	t.s.nextReservation++
	id := t.s.nextReservation
	owner := claimOwner{id: id}
	if r.Status.Blocking() {
		if err := t.claim(r.VenueID, r.TableIDs, r.Date, r.Time, owner); err != nil {
			t.s.nextReservation--
			return err
		}
	}
	now := t.s.now().UTC()
	r.ID = id
	r.CreatedAt, r.UpdatedAt = now, now
	stored := r.Clone()
	t.s.reservations[id] = &stored
	t.undo = append(t.undo, func() { delete(t.s.reservations, id) })
	return nil
}

func (t *memTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	prev, ok := t.s.reservations[r.ID]
	if !ok || prev.VenueID != r.VenueID {
		return repository.ErrReservationNotFound
	}
	owner := claimOwner{id: r.ID}
	t.releaseClaims(owner)
	if r.Status.Blocking() {
		if err := t.claim(r.VenueID, r.TableIDs, r.Date, r.Time, owner); err != nil {
			return err
		}
	}
	before := prev.Clone()
	r.UpdatedAt = t.s.now().UTC()
	stored := r.Clone()
	t.s.reservations[r.ID] = &stored
	t.undo = append(t.undo, func() { t.s.reservations[before.ID] = &before })
	return nil
}

func (t *memTx) InsertHold(ctx context.Context, h *model.Hold) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.s.nextHold++
	id := t.s.nextHold
	if err := t.claim(h.VenueID, h.TableIDs(), h.Date, h.Time, claimOwner{hold: true, id: id}); err != nil {
		t.s.nextHold--
		return err
	}
	h.ID = id
	h.CreatedAt = t.s.now().UTC()
	stored := cloneHold(*h)
	t.s.holds[id] = &stored
	t.undo = append(t.undo, func() { delete(t.s.holds, id) })
	return nil
}

func (t *memTx) ConsumeHold(ctx context.Context, venueID, holdID, reservationID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	h, ok := t.s.holds[holdID]
	if !ok || h.VenueID != venueID {
		return repository.ErrHoldNotFound
	}
	before := cloneHold(*h)
	t.releaseClaims(claimOwner{hold: true, id: holdID})
	h.Status = model.HoldConsumed
	rid := reservationID
	h.ReservationID = &rid
	t.undo = append(t.undo, func() { t.s.holds[holdID] = &before })
	return nil
}

// claim registers one claim per table, failing without side effects when
// any key is already owned.  Callers hold s.mu.
func (t *memTx) claim(venueID uint64, tableIDs []uint64, date, clock string, owner claimOwner) error {
	keys := make([]claimKey, 0, len(tableIDs))
	for _, tid := range repository.ClaimTableIDs(tableIDs) {
		k := claimKey{venueID: venueID, tableID: tid, date: date, time: clock}
		if _, taken := t.s.claims[k]; taken {
			return repository.ErrDuplicateSlot
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		k := k
		t.s.claims[k] = owner
		t.undo = append(t.undo, func() { delete(t.s.claims, k) })
	}
	return nil
}

// releaseClaims drops every claim held by owner.  Callers hold s.mu.
func (t *memTx) releaseClaims(owner claimOwner) {
	for k, o := range t.s.claims {
		if o != owner {
			continue
		}
		k, o := k, o
		delete(t.s.claims, k)
		t.undo = append(t.undo, func() { t.s.claims[k] = o })
	}
}
