// Package booking owns every write path for holds and reservations.  Each
// write runs in a serializable transaction behind a slot-scoped lock,
// re-checks conflicts inside the lock and relies on the store's slot
// uniqueness guard as the last line of defence against races.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// DefaultHoldTTL is used when neither the venue nor Config sets a TTL.
const DefaultHoldTTL = 10 * time.Minute

// Config tunes a Manager.  Zero values fall back to defaults.
type Config struct {
	HoldTTL time.Duration    // used when the venue has no hold TTL
	Now     func() time.Time // clock, defaults to time.Now
}

// Manager runs booking transactions.
type Manager struct {
	store    repository.Store
	engine   *availability.Engine
	detector *conflict.Detector
	log      *zap.Logger
	holdTTL  time.Duration
	now      func() time.Time
}

// NewManager wires a Manager.  A nil logger disables logging.
func NewManager(store repository.Store, engine *availability.Engine, detector *conflict.Detector, log *zap.Logger, cfg Config) *Manager {
	if store == nil || engine == nil || detector == nil {
		panic("nil dependency passed to NewManager")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:    store,
		engine:   engine,
		detector: detector,
		log:      log,
		holdTTL:  cfg.HoldTTL,
		now:      cfg.Now,
	}
}

// conflictAbort rolls back a transaction whose conflict check failed.
// Writes that compute their own checks inside the lock return it too.
type conflictAbort struct{ detail apperror.ConflictDetail }

func (*conflictAbort) Error() string { return "conflict detected" }

// guard lists the slot locks to take and the conflict checks to run before
// a write.  race rebuilds the conflict detail after a uniqueness violation
// when checks is empty.
type guard struct {
	venueID uint64
	cfg     *model.VenueConfig
	locks   []string
	checks  []conflict.Query
	race    *conflict.Query
}

// SlotKey is the advisory lock name for a nominal slot.
func SlotKey(venueID uint64, date, clock string) string {
	return fmt.Sprintf("slot:%d:%s:%s", venueID, date, clock)
}

// runGuarded executes write under g.  Conflicts found inside the lock and
// uniqueness violations raised by the store both come back as a
// conflicted outcome with the same detail shape.
func runGuarded[T any](ctx context.Context, m *Manager, g guard, write func(ctx context.Context, tx repository.Tx, now time.Time) (T, error)) (outcome[T], error) {
	if err := ctx.Err(); err != nil {
		return outcome[T]{}, err
	}
	locks := uniqueSorted(g.locks)
	now := m.now()

	var out outcome[T]
	err := m.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, key := range locks {
			if err := tx.LockSlot(ctx, key); err != nil {
				return fmt.Errorf("lock %s: %w", key, err)
			}
			m.log.Debug("slot locked", zap.String("key", key))
		}
		if _, err := tx.ExpireHolds(ctx, g.venueID, now); err != nil {
			return fmt.Errorf("expire holds: %w", err)
		}
		for _, q := range g.checks {
			detail, err := m.detector.Detect(ctx, tx, g.cfg, q, now)
			if err != nil {
				return err
			}
			if detail.HasConflicts() {
				return &conflictAbort{detail: detail}
			}
		}
		v, err := write(ctx, tx, now)
		if err != nil {
			return err
		}
		out = ok(v)
		return nil
	})

	var abort *conflictAbort
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &abort):
		return conflicted[T](abort.detail), nil
	case errors.Is(err, repository.ErrDuplicateSlot):
		return raced[T](ctx, m, g, now)
	default:
		return outcome[T]{}, err
	}
}

// raced rebuilds the conflict detail after a uniqueness violation, reading
// outside the aborted transaction so the competing write is visible.
func raced[T any](ctx context.Context, m *Manager, g guard, now time.Time) (outcome[T], error) {
	m.log.Info("slot uniqueness race", zap.Uint64("venue_id", g.venueID), zap.Strings("locks", g.locks))
	q := g.race
	if len(g.checks) > 0 {
		q = &g.checks[0]
	}
	if q == nil {
		return conflicted[T](apperror.ConflictDetail{VenueID: g.venueID, TableIDs: []uint64{}, Entries: []apperror.ConflictEntry{}}), nil
	}
	detail, err := m.detector.Detect(ctx, m.store, g.cfg, *q, now)
	if err != nil {
		return outcome[T]{}, err
	}
	return conflicted[T](detail), nil
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	// a fixed order keeps two multi-slot writers from deadlocking
	sort.Strings(out)
	return out
}

func (m *Manager) loadConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error) {
	cfg, err := m.store.LoadVenueConfig(ctx, venueID)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkTables verifies every id names a table of the venue and, when
// partySize is positive, that the tables seat the party together.
func (m *Manager) checkTables(ctx context.Context, venueID uint64, ids []uint64, partySize int) error {
	if len(ids) == 0 {
		return nil
	}
	tables, err := m.store.ListTables(ctx, venueID, repository.TableFilter{TableIDs: ids})
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	found := make(map[uint64]bool, len(tables))
	seats := 0
	for _, t := range tables {
		found[t.ID] = true
		seats += t.Capacity
	}
	for _, id := range ids {
		if !found[id] {
			return apperror.ErrTableNotFound.WithMessage("table %d not found in venue %d", id, venueID)
		}
	}
	if partySize > 0 && seats < partySize {
		return apperror.ErrTableTooSmall.WithMessage("tables %v seat %d, party is %d", ids, seats, partySize)
	}
	return nil
}

// servable rejects slots no rule covers, blackout dates and times outside
// every shift.
func servable(cfg *model.VenueConfig, win availability.Window, found bool, partySize int) error {
	if !found {
		return apperror.ErrPartySizeNotServed.WithMessage("no availability rule covers a party of %d", partySize)
	}
	if b, closed := cfg.BlackoutOn(win.Date); closed {
		msg := "venue is closed on " + win.Date
		if b.Reason != "" {
			msg += ": " + b.Reason
		}
		return apperror.ErrPolicyWindowClosed.WithMessage("%s", msg)
	}
	_, ok, err := policy.ShiftAt(cfg, win.Date, win.Time)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrPolicyWindowClosed.WithMessage("no service at %s %s", win.Date, win.Time)
	}
	return nil
}

// pickTable asks the availability engine for the first free table.  An
// empty answer is a SlotConflict only when bookings or pacing took the
// fitting tables; a venue with no table for the party is invalid input.
func (m *Manager) pickTable(ctx context.Context, cfg *model.VenueConfig, date, clock string, partySize int, exclude []uint64) (uint64, error) {
	win, found, err := availability.Resolve(cfg, date, clock, partySize)
	if err != nil {
		return 0, err
	}
	if err := servable(cfg, win, found, partySize); err != nil {
		return 0, err
	}
	res, err := m.engine.Evaluate(ctx, cfg, availability.Request{
		VenueID:               cfg.Venue.ID,
		Date:                  win.Date,
		Time:                  win.Time,
		PartySize:             partySize,
		ExcludeReservationIDs: exclude,
	})
	if err != nil {
		return 0, err
	}
	if len(res.Tables) > 0 {
		return res.Tables[0].ID, nil
	}
	if res.Stats.Total == 0 {
		return 0, apperror.ErrTableTooSmall.WithMessage("no active table seats a party of %d", partySize)
	}
	return 0, apperror.SlotConflict(res.Conflicts)
}

func (m *Manager) venueHoldTTL(cfg *model.VenueConfig) time.Duration {
	if cfg.Venue.HoldTTLMin > 0 {
		return time.Duration(cfg.Venue.HoldTTLMin) * time.Minute
	}
	return m.holdTTL
}

// GetReservation returns a reservation of the venue.
func (m *Manager) GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error) {
	return m.store.GetReservation(ctx, venueID, id)
}

// GetHold returns a hold of the venue with lazy expiry applied to its status.
func (m *Manager) GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error) {
	h, err := m.store.GetHold(ctx, venueID, id)
	if err != nil {
		return nil, err
	}
	h.Status = h.EffectiveStatus(m.now())
	return h, nil
}

func dedupeIDs(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
