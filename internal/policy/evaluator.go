// Package policy turns a venue's scheduling configuration into the list of
// open service windows for a date, and hashes that configuration so cached
// availability can be validated without re-deriving it.
package policy

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// ReasonBlackout tags the single closed slot emitted for a blackout date.
const ReasonBlackout = "blackout"

// Slot is one fixed-width service window.  Capacity is nil when neither a
// pacing rule nor the shift sets a limit.
type Slot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Capacity *int      `json:"capacity"`
	Reason   string    `json:"reason,omitempty"`
	ShiftID  uint64    `json:"shift_id,omitempty"`
}

// DayPlan is the result of EvaluateDay.
type DayPlan struct {
	VenueID    uint64 `json:"venue_id"`
	Date       string `json:"date"`
	Slots      []Slot `json:"slots"`
	PolicyHash string `json:"policy_hash"`
}

// Evaluator loads venue configuration and evaluates days.
type Evaluator struct {
	loader repository.ConfigLoader
}

// NewEvaluator returns an Evaluator reading from loader.
func NewEvaluator(loader repository.ConfigLoader) *Evaluator {
	if loader == nil {
		panic("nil config loader passed to NewEvaluator")
	}
	return &Evaluator{loader: loader}
}

// EvaluateDay returns the open windows for venueID on date.  An unknown
// venue yields an empty plan hashed over empty inputs.
func (e *Evaluator) EvaluateDay(ctx context.Context, venueID uint64, date string) (DayPlan, error) {
	if _, err := localtime.ParseDate(date); err != nil {
		return DayPlan{}, err
	}
	cfg, err := e.loader.LoadVenueConfig(ctx, venueID)
	if errors.Is(err, apperror.ErrVenueNotFound) {
		return DayPlan{VenueID: venueID, Date: date, Slots: []Slot{}, PolicyHash: Hash(nil, date)}, nil
	}
	if err != nil {
		return DayPlan{}, err
	}
	return Evaluate(cfg, date)
}

// Evaluate is the pure core of EvaluateDay.
func Evaluate(cfg *model.VenueConfig, date string) (DayPlan, error) {
	plan := DayPlan{VenueID: cfg.Venue.ID, Date: date, Slots: []Slot{}, PolicyHash: Hash(cfg, date)}

	loc, err := localtime.LoadZone(cfg.Venue.Timezone)
	if err != nil {
		return DayPlan{}, err
	}
	nextDate, err := localtime.AddDays(date, 1)
	if err != nil {
		return DayPlan{}, err
	}
	dayStart, err := localtime.StartOfDay(loc, date)
	if err != nil {
		return DayPlan{}, err
	}
	dayEnd, err := localtime.StartOfDay(loc, nextDate)
	if err != nil {
		return DayPlan{}, err
	}

	if _, closed := cfg.BlackoutOn(date); closed {
		zero := 0
		plan.Slots = append(plan.Slots, Slot{
			Start: dayStart, End: dayEnd, Date: date, Time: "00:00",
			Capacity: &zero, Reason: ReasonBlackout,
		})
		return plan, nil
	}

	wd, err := localtime.Weekday(date, cfg.Venue.Timezone)
	if err != nil {
		return DayPlan{}, err
	}
	prev := (wd + 6) % 7
	width := PacingWindow(cfg)
	capacity := PacingCapacity(cfg)

	for _, sh := range cfg.Shifts {
		if !sh.IsActive {
			continue
		}
		startMin, endMin, err := shiftBounds(sh)
		if err != nil {
			return DayPlan{}, err
		}
		overnight := endMin <= startMin

		var from, to time.Time
		trimHead, trimTail := false, false
		switch {
		case sh.DayOfWeek == wd:
			from, err = localtime.ToInstantIn(loc, date, sh.StartTime)
			if err != nil {
				return DayPlan{}, err
			}
			trimHead = true
			if overnight {
				to = dayEnd
				trimTail = endMin == 0
			} else {
				to, err = localtime.ToInstantIn(loc, date, sh.EndTime)
				if err != nil {
					return DayPlan{}, err
				}
				trimTail = true
			}
		case sh.DayOfWeek == prev && overnight && endMin > 0:
			from = dayStart
			to, err = localtime.ToInstantIn(loc, date, sh.EndTime)
			if err != nil {
				return DayPlan{}, err
			}
			trimTail = true
		default:
			continue
		}

		if trimHead && cfg.Buffer.BeforeMin > 0 {
			from = localtime.AddMinutesIn(from, cfg.Buffer.BeforeMin, loc)
		}
		if trimTail && cfg.Buffer.AfterMin > 0 {
			to = localtime.AddMinutesIn(to, -cfg.Buffer.AfterMin, loc)
		}

		slotCap := capacity
		if slotCap == nil && sh.Capacity != nil {
			v := *sh.Capacity
			slotCap = &v
		}
		for cur := from; ; {
			next := localtime.AddMinutesIn(cur, width, loc)
			if !next.After(cur) || next.After(to) {
				break
			}
			d, clock := localParts(cur, loc)
			plan.Slots = append(plan.Slots, Slot{
				Start: cur, End: next, Date: d, Time: clock,
				Capacity: copyInt(slotCap), ShiftID: sh.ID,
			})
			cur = next
		}
	}

	sort.SliceStable(plan.Slots, func(i, j int) bool {
		a, b := plan.Slots[i], plan.Slots[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ShiftID < b.ShiftID
	})
	return plan, nil
}

func localParts(t time.Time, loc *time.Location) (string, string) {
	lt := t.In(loc)
	return lt.Format(localtime.DateLayout), lt.Format(localtime.TimeLayout)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
