package policy

import (
	"math"
	"sort"

	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
)

// maxBusyMinutes bounds any busy window to one day.
const maxBusyMinutes = 24 * 60

// SelectRule picks the availability rule for partySize: the narrowest
// matching band wins, then the band with the larger minimum, then the
// lower id.
func SelectRule(rules []model.AvailabilityRule, partySize int) (model.AvailabilityRule, bool) {
	var best model.AvailabilityRule
	found := false
	for _, r := range rules {
		if !r.Matches(partySize) {
			continue
		}
		if !found || better(r, best) {
			best, found = r, true
		}
	}
	return best, found
}

func better(a, b model.AvailabilityRule) bool {
	if a.Width() != b.Width() {
		return a.Width() < b.Width()
	}
	if a.MinParty != b.MinParty {
		return a.MinParty > b.MinParty
	}
	return a.ID < b.ID
}

// SlotLength returns the dining length for partySize: the stored value
// when positive, else the matching rule, else the venue default.
func SlotLength(cfg *model.VenueConfig, partySize, stored int) int {
	if stored > 0 {
		return stored
	}
	if r, ok := SelectRule(cfg.Rules, partySize); ok && r.SlotLengthMin > 0 {
		return r.SlotLengthMin
	}
	return cfg.Venue.DefaultDurationMin
}

// BusyMinutes is the full time a booking occupies a table:
// slot length + turn-time + rule buffer, capped at one day.
func BusyMinutes(cfg *model.VenueConfig, partySize, stored int) int {
	total := SlotLength(cfg, partySize, stored) + cfg.Venue.TurnTime()
	if r, ok := SelectRule(cfg.Rules, partySize); ok && r.BufferMin > 0 {
		total += r.BufferMin
	}
	if total > maxBusyMinutes {
		return maxBusyMinutes
	}
	if total < 0 {
		return 0
	}
	return total
}

// ShiftAt returns the active shift covering clock on date: either a shift
// of that weekday or an overnight shift of the previous weekday whose tail
// reaches into date.
func ShiftAt(cfg *model.VenueConfig, date, clock string) (model.Shift, bool, error) {
	wd, err := localtime.Weekday(date, cfg.Venue.Timezone)
	if err != nil {
		return model.Shift{}, false, err
	}
	t, err := localtime.MinuteOfDay(clock)
	if err != nil {
		return model.Shift{}, false, err
	}
	prev := (wd + 6) % 7
	for _, sh := range cfg.Shifts {
		if !sh.IsActive {
			continue
		}
		start, end, err := shiftBounds(sh)
		if err != nil {
			return model.Shift{}, false, err
		}
		overnight := end <= start
		switch {
		case sh.DayOfWeek == wd && t >= start && (overnight || t < end):
			return sh, true, nil
		case sh.DayOfWeek == prev && overnight && t < end:
			return sh, true, nil
		}
	}
	return model.Shift{}, false, nil
}

func shiftBounds(sh model.Shift) (int, int, error) {
	start, err := localtime.MinuteOfDay(sh.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := localtime.MinuteOfDay(sh.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ActivePacing returns the active pacing rules in canonical order:
// narrowest window first, then the tightest reservation cap, then the
// tightest cover cap, with unlimited caps last.  Row order and ids never
// matter, so two configurations with the same rules evaluate alike.
func ActivePacing(cfg *model.VenueConfig) []model.PacingRule {
	out := make([]model.PacingRule, 0, len(cfg.Pacing))
	for _, p := range cfg.Pacing {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return pacingLess(out[i], out[j]) })
	return out
}

func pacingLess(a, b model.PacingRule) bool {
	if a.Window() != b.Window() {
		return a.Window() < b.Window()
	}
	ar, br := capOrMax(a.ReservationCap()), capOrMax(b.ReservationCap())
	if ar != br {
		return ar < br
	}
	return capOrMax(a.CoverCap()) < capOrMax(b.CoverCap())
}

func capOrMax(v int, limited bool) int {
	if !limited {
		return math.MaxInt
	}
	return v
}

// GoverningPacing is the rule that sets slot width and capacity for the
// day plan: the first of ActivePacing.
func GoverningPacing(cfg *model.VenueConfig) (model.PacingRule, bool) {
	rules := ActivePacing(cfg)
	if len(rules) == 0 {
		return model.PacingRule{}, false
	}
	return rules[0], true
}

// PacingWindow is the bucket width of the governing pacing rule, or the
// default when the venue has none.
func PacingWindow(cfg *model.VenueConfig) int {
	if p, ok := GoverningPacing(cfg); ok {
		return p.Window()
	}
	return model.DefaultPacingWindowMin
}

// PacingCapacity is the per-slot capacity set by the governing rule: its
// reservation cap, else its cover cap.  Without either the venue
// quarter-hour cap applies; nil means the shift capacity decides.
func PacingCapacity(cfg *model.VenueConfig) *int {
	if p, ok := GoverningPacing(cfg); ok {
		if v, limited := p.ReservationCap(); limited {
			return &v
		}
		if v, limited := p.CoverCap(); limited {
			return &v
		}
	}
	if cfg.Venue.PacingPerQuarterHour > 0 {
		v := cfg.Venue.PacingPerQuarterHour
		return &v
	}
	return nil
}
