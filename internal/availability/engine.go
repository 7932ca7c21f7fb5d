// Package availability answers "which tables can take this party at this
// time": it selects the duration rule, checks shift containment and
// blackouts, runs conflict detection over the candidate tables and applies
// the pacing cap.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// Source is the storage surface the engine reads.
type Source interface {
	repository.ConfigLoader
	repository.Reader
}

// Request is a concrete availability question.
type Request struct {
	VenueID               uint64   `json:"venue_id"`
	Date                  string   `json:"date"`
	Time                  string   `json:"time"`
	PartySize             int      `json:"party_size"`
	Area                  string   `json:"area,omitempty"`
	TableID               uint64   `json:"table_id,omitempty"`
	ExcludeReservationIDs []uint64 `json:"-"`
	ExcludeHoldIDs        []uint64 `json:"-"`
}

// Stats summarises the candidate set.  Blocked counts candidates removed
// by conflicts or by pacing truncation.
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Blocked   int `json:"blocked"`
}

// Pacing reports the bucket accounting for the request.  Remaining is -1
// when no cap applies.
type Pacing struct {
	WindowMin int `json:"window_min"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Result is the availability answer.
type Result struct {
	Requested  Request                 `json:"requested"`
	Tables     []model.Table           `json:"tables"`
	Stats      Stats                   `json:"stats"`
	Conflicts  apperror.ConflictDetail `json:"conflicts"`
	Pacing     *Pacing                 `json:"pacing,omitempty"`
	Window     *Window                 `json:"window,omitempty"`
	PolicyHash string                  `json:"policy_hash"`
}

// Window is the resolved busy window of a slot.
type Window struct {
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	SlotLengthMin int       `json:"slot_length_min"`
	DurationMin   int       `json:"duration_min"`
	RuleID        uint64    `json:"rule_id,omitempty"`
}

// Engine evaluates availability requests.
type Engine struct {
	source   Source
	detector *conflict.Detector
	now      func() time.Time
}

// NewEngine wires an Engine.  now defaults to time.Now.
func NewEngine(source Source, detector *conflict.Detector, now func() time.Time) *Engine {
	if source == nil || detector == nil {
		panic("nil dependency passed to NewEngine")
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{source: source, detector: detector, now: now}
}

// Resolve validates the slot and derives its busy window.  The window's
// duration is slot length + turn-time + buffer of the matching rule; with
// no matching rule the venue default length is used and found is false.
func Resolve(cfg *model.VenueConfig, date, clock string, partySize int) (w Window, found bool, err error) {
	if partySize <= 0 {
		return Window{}, false, apperror.ErrInvalidPartySize.WithMessage("party size must be positive, got %d", partySize)
	}
	clock, err = localtime.NormalizeTime(clock)
	if err != nil {
		return Window{}, false, err
	}
	loc, err := localtime.LoadZone(cfg.Venue.Timezone)
	if err != nil {
		return Window{}, false, err
	}
	start, err := localtime.ToInstantIn(loc, date, clock)
	if err != nil {
		return Window{}, false, err
	}
	rule, found := policy.SelectRule(cfg.Rules, partySize)
	busy := policy.BusyMinutes(cfg, partySize, 0)
	return Window{
		Date:          date,
		Time:          clock,
		Start:         start,
		End:           start.Add(time.Duration(busy) * time.Minute),
		SlotLengthMin: policy.SlotLength(cfg, partySize, 0),
		DurationMin:   busy,
		RuleID:        rule.ID,
	}, found, nil
}

// GetAvailability loads the venue configuration and evaluates req.
func (e *Engine) GetAvailability(ctx context.Context, req Request) (*Result, error) {
	if req.PartySize <= 0 {
		return nil, apperror.ErrInvalidPartySize.WithMessage("party size must be positive, got %d", req.PartySize)
	}
	clock, err := localtime.NormalizeTime(req.Time)
	if err != nil {
		return nil, err
	}
	if _, err := localtime.ParseDate(req.Date); err != nil {
		return nil, err
	}
	req.Time = clock

	cfg, err := e.source.LoadVenueConfig(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, cfg, req)
}

// Evaluate runs the availability steps against an already loaded config.
func (e *Engine) Evaluate(ctx context.Context, cfg *model.VenueConfig, req Request) (*Result, error) {
	res := &Result{
		Requested:  req,
		Tables:     []model.Table{},
		Conflicts:  apperror.ConflictDetail{VenueID: req.VenueID, Date: req.Date, Time: req.Time, TableIDs: []uint64{}, Entries: []apperror.ConflictEntry{}},
		PolicyHash: policy.Hash(cfg, req.Date),
	}

	win, found, err := Resolve(cfg, req.Date, req.Time, req.PartySize)
	if err != nil {
		return nil, err
	}
	res.Requested.Time = win.Time
	if !found {
		return res, nil
	}
	if _, ok, err := policy.ShiftAt(cfg, win.Date, win.Time); err != nil {
		return nil, err
	} else if !ok {
		return res, nil
	}
	if _, closed := cfg.BlackoutOn(win.Date); closed {
		return res, nil
	}

	tables, err := e.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return res, nil
	}
	res.Window = &win
	res.Stats.Total = len(tables)

	ids := make([]uint64, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	now := e.now()
	detail, err := e.detector.Detect(ctx, e.source, cfg, conflict.Query{
		VenueID:               req.VenueID,
		TableIDs:              ids,
		Date:                  win.Date,
		Time:                  win.Time,
		Start:                 win.Start,
		DurationMin:           win.DurationMin,
		ExcludeReservationIDs: req.ExcludeReservationIDs,
		ExcludeHoldIDs:        req.ExcludeHoldIDs,
	}, now)
	if err != nil {
		return nil, err
	}
	res.Conflicts = detail

	blocked, tableless := detail.BlockedTables()
	free := make([]model.Table, 0, len(tables))
	if !tableless {
		for _, t := range tables {
			if !blocked[t.ID] {
				free = append(free, t)
			}
		}
	}

	pacing, err := e.pacing(ctx, cfg, req, win, now)
	if err != nil {
		return nil, err
	}
	res.Pacing = pacing
	if pacing.Remaining >= 0 && pacing.Remaining < len(free) {
		free = free[:pacing.Remaining]
	}

	res.Tables = free
	res.Stats.Available = len(free)
	res.Stats.Blocked = res.Stats.Total - len(free)
	return res, nil
}

// candidates loads tables that fit the party, ordered by capacity then label.
func (e *Engine) candidates(ctx context.Context, req Request) ([]model.Table, error) {
	f := repository.TableFilter{Area: req.Area, ActiveOnly: true}
	if req.TableID != 0 {
		f.TableIDs = []uint64{req.TableID}
	}
	tables, err := e.source.ListTables(ctx, req.VenueID, f)
	if err != nil {
		return nil, err
	}
	if req.TableID != 0 && len(tables) == 0 {
		return nil, apperror.ErrTableNotFound.WithMessage("table %d not found in venue %d", req.TableID, req.VenueID)
	}
	out := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if t.Capacity >= req.PartySize {
			out = append(out, t)
		}
	}
	SortTables(out)
	return out, nil
}

// SortTables orders tables by ascending capacity, then label, then id.
func SortTables(tables []model.Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		a, b := tables[i], tables[j]
		if a.Capacity != b.Capacity {
			return a.Capacity < b.Capacity
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.ID < b.ID
	})
}
