package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// HoldInput requests a short-lived claim on a slot.  TableID 0 asks for a
// table-less hold.
type HoldInput struct {
	VenueID   uint64 `json:"venue_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"party_size"`
	TableID   uint64 `json:"table_id,omitempty"`
}

// HoldResult is returned by CreateHold.  Holds produce no domain events.
type HoldResult struct {
	Hold               model.Hold          `json:"hold"`
	Events             []Event             `json:"events"`
	CacheInvalidations []CacheInvalidation `json:"cache_invalidations"`
}

// CreateHold claims a slot for the venue's hold TTL.
func (m *Manager) CreateHold(ctx context.Context, in HoldInput) (*HoldResult, error) {
	cfg, err := m.loadConfig(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	win, found, err := availability.Resolve(cfg, in.Date, in.Time, in.PartySize)
	if err != nil {
		return nil, err
	}
	if err := servable(cfg, win, found, in.PartySize); err != nil {
		return nil, err
	}
	var tables []uint64
	if in.TableID != 0 {
		if err := m.checkTables(ctx, in.VenueID, []uint64{in.TableID}, in.PartySize); err != nil {
			return nil, err
		}
		tables = []uint64{in.TableID}
	}

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
			DurationMin: win.DurationMin,
		}},
	}
	ttl := m.venueHoldTTL(cfg)
	out, err := runGuarded(ctx, m, g, func(ctx context.Context, tx repository.Tx, now time.Time) (model.Hold, error) {
		h := model.Hold{
			VenueID:     in.VenueID,
			Token:       uuid.NewString(),
			Status:      model.HoldHeld,
			Date:        win.Date,
			Time:        win.Time,
			StartsAt:    win.Start.UTC(),
			DurationMin: win.SlotLengthMin,
			PartySize:   in.PartySize,
			ExpiresAt:   now.Add(ttl).UTC(),
		}
		if in.TableID != 0 {
			id := in.TableID
			h.TableID = &id
		}
		if err := tx.InsertHold(ctx, &h); err != nil {
			return model.Hold{}, err
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	hold, err := out.unwrap()
	if err != nil {
		return nil, err
	}
	m.log.Debug("hold created", zap.Uint64("venue_id", hold.VenueID), zap.Uint64("hold_id", hold.ID), zap.String("date", hold.Date), zap.String("time", hold.Time))
	return &HoldResult{
		Hold:               hold,
		Events:             []Event{},
		CacheInvalidations: invalidations(in.VenueID, hold.Date),
	}, nil
}

