package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/iliyamo/venue-booking/internal/model"
)

// HashVersion prefixes every policy hash; bump it whenever the canonical
// form below changes.
const HashVersion = "v2"

type canonicalShift struct {
	Day      int    `json:"d"`
	Start    string `json:"s"`
	End      string `json:"e"`
	Capacity *int   `json:"c"`
}

type canonicalPacing struct {
	Window          int  `json:"w"`
	MaxReservations *int `json:"r"`
	MaxCovers       *int `json:"c"`
}

type canonicalPolicy struct {
	Version        string            `json:"v"`
	Date           string            `json:"date"`
	Timezone       string            `json:"tz"`
	Shifts         []canonicalShift  `json:"shifts"`
	Pacing         []canonicalPacing `json:"pacing"`
	Blackout       *string           `json:"blackout"`
	Before         int               `json:"before"`
	After          int               `json:"after"`
	QuarterHourCap int               `json:"qh"`
	SlotWidth      int               `json:"sw"`
	SlotCapacity   *int              `json:"sc"`
}

// Hash returns a content hash of the configuration that governs date.  It
// depends only on values, never on row order or ids.  A nil cfg hashes the
// empty configuration.
func Hash(cfg *model.VenueConfig, date string) string {
	c := canonicalPolicy{Version: HashVersion, Date: date, Shifts: []canonicalShift{}, Pacing: []canonicalPacing{}}
	if cfg != nil {
		c.Timezone = cfg.Venue.Timezone
		c.QuarterHourCap = cfg.Venue.PacingPerQuarterHour
		for _, sh := range cfg.Shifts {
			if sh.IsActive {
				c.Shifts = append(c.Shifts, canonicalShift{Day: sh.DayOfWeek, Start: sh.StartTime, End: sh.EndTime, Capacity: sh.Capacity})
			}
		}
		for _, p := range ActivePacing(cfg) {
			cp := canonicalPacing{Window: p.Window()}
			if v, ok := p.ReservationCap(); ok {
				cp.MaxReservations = &v
			}
			if v, ok := p.CoverCap(); ok {
				cp.MaxCovers = &v
			}
			c.Pacing = append(c.Pacing, cp)
		}
		c.SlotWidth = PacingWindow(cfg)
		c.SlotCapacity = PacingCapacity(cfg)
		if b, ok := cfg.BlackoutOn(date); ok {
			reason := b.Reason
			c.Blackout = &reason
		}
		c.Before, c.After = cfg.Buffer.BeforeMin, cfg.Buffer.AfterMin
	}
	sort.Slice(c.Shifts, func(i, j int) bool {
		a, b := c.Shifts[i], c.Shifts[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return intOr(a.Capacity) < intOr(b.Capacity)
	})

	// Marshalling plain structs, slices and pointers cannot fail.
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return HashVersion + ":" + hex.EncodeToString(sum[:])
}

func intOr(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
