// Package memory is an in-process implementation of repository.Store.
// Transactions run one at a time behind a single writer lock, which is a
// stricter form of the per-slot advisory lock used by the SQL store; the
// slot claim map enforces the same (venue, table, date, time) uniqueness.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

type claimKey struct {
	venueID uint64
	tableID uint64
	date    string
	time    string
}

type claimOwner struct {
	hold bool
	id   uint64
}

// Store keeps venues, tables, reservations and holds in maps.
type Store struct {
	writer sync.Mutex // held for the lifetime of a transaction
	mu     sync.RWMutex

	configs      map[uint64]*model.VenueConfig
	tables       map[uint64][]model.Table
	reservations map[uint64]*model.Reservation
	holds        map[uint64]*model.Hold
	claims       map[claimKey]claimOwner

	nextReservation uint64
	nextHold        uint64
	nextBlackout    uint64
	now             func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		configs:      make(map[uint64]*model.VenueConfig),
		tables:       make(map[uint64][]model.Table),
		reservations: make(map[uint64]*model.Reservation),
		holds:        make(map[uint64]*model.Hold),
		claims:       make(map[claimKey]claimOwner),
		now:          time.Now,
	}
}

// PutVenue registers or replaces a venue configuration.
func (s *Store) PutVenue(cfg model.VenueConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneConfig(cfg)
	for i := range c.Blackouts {
		if c.Blackouts[i].ID == 0 {
			s.nextBlackout++
			c.Blackouts[i].ID = s.nextBlackout
		}
	}
	s.configs[cfg.Venue.ID] = &c
}

// PutTables appends tables to a venue.
func (s *Store) PutTables(tables ...model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		s.tables[t.VenueID] = append(s.tables[t.VenueID], t)
	}
}

// LoadVenueConfig implements repository.ConfigLoader.
func (s *Store) LoadVenueConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[venueID]
	if !ok {
		return nil, repository.ErrVenueNotFound
	}
	out := cloneConfig(*cfg)
	out.Shifts = filterShifts(out.Shifts)
	out.Pacing = filterPacing(out.Pacing)
	return &out, nil
}

// ListTables implements repository.ConfigLoader.  Results are ordered by id.
func (s *Store) ListTables(ctx context.Context, venueID uint64, f repository.TableFilter) ([]model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uint64]bool, len(f.TableIDs))
	for _, id := range f.TableIDs {
		want[id] = true
	}
	out := []model.Table{}
	for _, t := range s.tables[venueID] {
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		if f.MinCapacity > 0 && t.Capacity < f.MinCapacity {
			continue
		}
		if f.Area != "" && t.Area != f.Area {
			continue
		}
		if len(want) > 0 && !want[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReservationsStartingBetween implements repository.Reader.
func (s *Store) ReservationsStartingBetween(ctx context.Context, venueID uint64, from, to time.Time) ([]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reservationsBetween(venueID, from, to), nil
}

func (s *Store) reservationsBetween(venueID uint64, from, to time.Time) []model.Reservation {
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if r.VenueID != venueID || !r.Status.Blocking() {
			continue
		}
		if r.StartsAt.Before(from) || !r.StartsAt.Before(to) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HoldsStartingBetween implements repository.Reader.
func (s *Store) HoldsStartingBetween(ctx context.Context, venueID uint64, from, to, now time.Time) ([]model.Hold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holdsBetween(venueID, from, to, now), nil
}

func (s *Store) holdsBetween(venueID uint64, from, to, now time.Time) []model.Hold {
	out := []model.Hold{}
	for _, h := range s.holds {
		if h.VenueID != venueID || !h.Live(now) {
			continue
		}
		if h.StartsAt.Before(from) || !h.StartsAt.Before(to) {
			continue
		}
		out = append(out, cloneHold(*h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetReservation implements repository.Store.
func (s *Store) GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReservation(venueID, id)
}

func (s *Store) getReservation(venueID, id uint64) (*model.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok || r.VenueID != venueID {
		return nil, repository.ErrReservationNotFound
	}
	out := r.Clone()
	return &out, nil
}

// ListReservations implements repository.Store.
func (s *Store) ListReservations(ctx context.Context, venueID uint64, date string) ([]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Reservation{}
	for _, r := range s.reservations {
		if r.VenueID == venueID && r.Date == date {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetHold implements repository.Store.
func (s *Store) GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getHold(venueID, id)
}

func (s *Store) getHold(venueID, id uint64) (*model.Hold, error) {
	h, ok := s.holds[id]
	if !ok || h.VenueID != venueID {
		return nil, repository.ErrHoldNotFound
	}
	out := cloneHold(*h)
	return &out, nil
}

// AddBlackout implements repository.Store.
func (s *Store) AddBlackout(ctx context.Context, b *model.BlackoutDate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[b.VenueID]
	if !ok {
		return repository.ErrVenueNotFound
	}
	if _, exists := cfg.BlackoutOn(b.Date); exists {
		return repository.ErrConflict
	}
	s.nextBlackout++
	b.ID = s.nextBlackout
	cfg.Blackouts = append(cfg.Blackouts, *b)
	return nil
}

// DeleteBlackout implements repository.Store.
func (s *Store) DeleteBlackout(ctx context.Context, venueID uint64, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[venueID]
	if !ok {
		return repository.ErrVenueNotFound
	}
	for i, b := range cfg.Blackouts {
		if b.Date == date {
			cfg.Blackouts = append(cfg.Blackouts[:i], cfg.Blackouts[i+1:]...)
			return nil
		}
	}
	return repository.ErrBlackoutNotFound
}

// InTx implements repository.Store.  Changes are applied directly and
// undone in reverse order when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writer.Lock()
	defer s.writer.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func filterShifts(in []model.Shift) []model.Shift {
	out := in[:0]
	for _, sh := range in {
		if sh.IsActive {
			out = append(out, sh)
		}
	}
	return out
}

func filterPacing(in []model.PacingRule) []model.PacingRule {
	out := in[:0]
	for _, p := range in {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

func cloneConfig(c model.VenueConfig) model.VenueConfig { return c.Clone() }

func cloneHold(h model.Hold) model.Hold {
	out := h
	if h.TableID != nil {
		v := *h.TableID
		out.TableID = &v
	}
	if h.ReservationID != nil {
		v := *h.ReservationID
		out.ReservationID = &v
	}
	return out
}
