// Package localtime converts between venue-local wall-clock values and
// absolute instants.  Dates are "YYYY-MM-DD" and times are 24-hour "HH:MM".
//
// Wall-clock values that do not exist (spring-forward gaps) or exist twice
// (fall-back overlaps) are resolved with "compatible" disambiguation: a
// skipped time moves forward by the length of the gap and a repeated time
// resolves to its first occurrence.
package localtime

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperror"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var zones sync.Map // zone name -> *time.Location

// LoadZone resolves an IANA zone name, caching the result.
func LoadZone(name string) (*time.Location, error) {
	if v, ok := zones.Load(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperror.ErrInvalidInput.WithMessage("unknown timezone %q", name)
	}
	zones.Store(name, loc)
	return loc, nil
}

// ParseDate validates a calendar date and returns it as midnight UTC.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, apperror.ErrInvalidTimeFormat.WithMessage("invalid date %q", date)
	}
	return d, nil
}

var clockRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s*([ap]\.?m\.?)?$`)

// NormalizeTime accepts "H:MM", "HH:MM", "HH:MM:SS" and 12-hour forms such
// as "7pm" or "7:30 PM" and returns the canonical "HH:MM".
func NormalizeTime(clock string) (string, error) {
	h, m, err := parseClock(clock)
	if err != nil {
		return "", err
	}
	return FormatMinutes(h*60 + m), nil
}

func parseClock(clock string) (int, int, error) {
	s := strings.ToLower(strings.TrimSpace(clock))
	match := clockRe.FindStringSubmatch(s)
	if match == nil {
		return 0, 0, apperror.ErrInvalidTimeFormat.WithMessage("invalid time %q", clock)
	}
	h, _ := strconv.Atoi(match[1])
	m := 0
	if match[2] != "" {
		m, _ = strconv.Atoi(match[2])
	} else if match[4] == "" {
		// a bare number without am/pm is ambiguous
		return 0, 0, apperror.ErrInvalidTimeFormat.WithMessage("invalid time %q", clock)
	}
	if match[3] != "" {
		if sec, _ := strconv.Atoi(match[3]); sec > 59 {
			return 0, 0, apperror.ErrInvalidTimeFormat.WithMessage("invalid time %q", clock)
		}
	}
	if suffix := match[4]; suffix != "" {
		if h < 1 || h > 12 {
			return 0, 0, apperror.ErrInvalidTimeFormat.WithMessage("invalid time %q", clock)
		}
		pm := strings.HasPrefix(suffix, "p")
		switch {
		case h == 12 && !pm:
			h = 0
		case h != 12 && pm:
			h += 12
		}
	}
	if h > 23 || m > 59 {
		return 0, 0, apperror.ErrInvalidTimeFormat.WithMessage("invalid time %q", clock)
	}
	return h, m, nil
}

// MinuteOfDay returns minutes since local midnight for a clock value.
func MinuteOfDay(clock string) (int, error) {
	h, m, err := parseClock(clock)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes since midnight as "HH:MM".  Values are
// taken modulo one day.
func FormatMinutes(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return pad2(minutes/60) + ":" + pad2(minutes%60)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// ToInstant interprets date and clock as wall-clock time in the named zone.
func ToInstant(tz, date, clock string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return ToInstantIn(loc, date, clock)
}

// ToInstantIn is ToInstant with an already resolved location.
func ToInstantIn(loc *time.Location, date, clock string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return resolve(loc, time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, time.UTC)), nil
}

// resolve maps a naive wall-clock value (carried in a UTC time) to an
// instant in loc.  Zones change offset at most once in the surrounding
// 48 hours, so the offsets a day either side bound every candidate.
func resolve(loc *time.Location, wall time.Time) time.Time {
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, after := wall.Add(24 * time.Hour).In(loc).Zone()
	early := wall.Add(-time.Duration(before) * time.Second)
	late := wall.Add(-time.Duration(after) * time.Second)

	var best time.Time
	found := false
	for _, cand := range []time.Time{early, late} {
		if !sameWall(cand.In(loc), wall) {
			continue
		}
		if !found || cand.Before(best) {
			best, found = cand, true
		}
	}
	if found {
		return best.In(loc)
	}
	// Skipped time: applying the pre-transition offset lands past the gap.
	return early.In(loc)
}

func sameWall(t, wall time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := wall.Date()
	return y1 == y2 && m1 == m2 && d1 == d2 && t.Hour() == wall.Hour() && t.Minute() == wall.Minute()
}

// ToLocal returns the wall-clock date and time of instant in the named zone.
func ToLocal(instant time.Time, tz string) (string, string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", "", err
	}
	lt := instant.In(loc)
	return lt.Format(DateLayout), lt.Format(TimeLayout), nil
}

// Weekday returns the local day of week, 0 = Sunday.  A calendar date has
// the same weekday in every zone; tz is validated for consistency with the
// other conversions.
func Weekday(date, tz string) (int, error) {
	if _, err := LoadZone(tz); err != nil {
		return 0, err
	}
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return int(d.Weekday()), nil
}

// AddMinutes adds n wall-clock minutes to instant: the local clock is
// advanced and the result re-resolved in the zone, so crossing a DST gap
// lands on the intended local time rather than n real minutes later.
func AddMinutes(instant time.Time, n int, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return AddMinutesIn(instant, n, loc), nil
}

// AddMinutesIn is AddMinutes with an already resolved location.
func AddMinutesIn(instant time.Time, n int, loc *time.Location) time.Time {
	lt := instant.In(loc)
	wall := time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), time.UTC)
	return resolve(loc, wall.Add(time.Duration(n)*time.Minute))
}

// AddDays shifts a calendar date by n days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}

// StartOfDay returns local midnight of date in loc, which may itself fall
// in a DST gap in some zones.
func StartOfDay(loc *time.Location, date string) (time.Time, error) {
	return ToInstantIn(loc, date, "00:00")
}
