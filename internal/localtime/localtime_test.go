package localtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperror"
)

const newYork = "America/New_York"

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "19:00", want: "19:00"},
		{in: "7:05", want: "07:05"},
		{in: "19:30:00", want: "19:30"},
		{in: "7pm", want: "19:00"},
		{in: "7:30 PM", want: "19:30"},
		{in: "12:15am", want: "00:15"},
		{in: "12pm", want: "12:00"},
		{in: "24:00", wantErr: true},
		{in: "19:60", wantErr: true},
		{in: "13pm", wantErr: true},
		{in: "19", wantErr: true},
		{in: "evening", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperror.ErrInvalidTimeFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInstantRoundTrip(t *testing.T) {
	cases := []struct{ tz, date, clock string }{
		{newYork, "2024-07-04", "19:00"},
		{newYork, "2024-01-15", "00:00"},
		{"Europe/Berlin", "2024-10-27", "03:30"},
		{"Asia/Kolkata", "2024-02-29", "23:45"},
		{"UTC", "2024-12-31", "23:59"},
	}
	for _, c := range cases {
		inst, err := ToInstant(c.tz, c.date, c.clock)
		require.NoError(t, err)
		d, clk, err := ToLocal(inst, c.tz)
		require.NoError(t, err)
		assert.Equal(t, c.date, d, c.tz)
		assert.Equal(t, c.clock, clk, c.tz)
	}
}

func TestToInstantSpringForwardGap(t *testing.T) {
	// 02:30 does not exist on 2024-03-10 in New York.
	inst, err := ToInstant(newYork, "2024-03-10", "02:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC), inst.UTC())

	_, clk, err := ToLocal(inst, newYork)
	require.NoError(t, err)
	assert.Equal(t, "03:30", clk)

	again, err := ToInstant(newYork, "2024-03-10", "02:30")
	require.NoError(t, err)
	assert.True(t, inst.Equal(again))
}

func TestToInstantFallBackOverlapPicksFirst(t *testing.T) {
	// 01:30 happens twice on 2024-11-03; the EDT occurrence comes first.
	inst, err := ToInstant(newYork, "2024-11-03", "01:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC), inst.UTC())
}

func TestAddMinutesIsWallClock(t *testing.T) {
	start, err := ToInstant(newYork, "2024-03-10", "01:30")
	require.NoError(t, err)

	got, err := AddMinutes(start, 60, newYork)
	require.NoError(t, err)
	_, clk, err := ToLocal(got, newYork)
	require.NoError(t, err)
	// 02:30 is skipped, so the clock lands on 03:30 which is only 60 real minutes later.
	assert.Equal(t, "03:30", clk)

	got, err = AddMinutes(start, 120, newYork)
	require.NoError(t, err)
	_, clk, err = ToLocal(got, newYork)
	require.NoError(t, err)
	assert.Equal(t, "03:30", clk)
	assert.Equal(t, time.Hour, got.Sub(start))

	evening, err := ToInstant(newYork, "2024-07-04", "23:30")
	require.NoError(t, err)
	got, err = AddMinutes(evening, 45, newYork)
	require.NoError(t, err)
	d, clk, err := ToLocal(got, newYork)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-05", d)
	assert.Equal(t, "00:15", clk)
}

func TestWeekday(t *testing.T) {
	wd, err := Weekday("2024-07-04", newYork)
	require.NoError(t, err)
	assert.Equal(t, 4, wd)

	wd, err = Weekday("2024-07-07", "Pacific/Auckland")
	require.NoError(t, err)
	assert.Equal(t, 0, wd)

	_, err = Weekday("2024-13-01", newYork)
	assert.ErrorIs(t, err, apperror.ErrInvalidTimeFormat)

	_, err = Weekday("2024-07-04", "Mars/Olympus")
	assert.True(t, apperror.IsInvalidInput(err))
}

func TestAddDaysAndFormat(t *testing.T) {
	d, err := AddDays("2024-02-28", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d)

	assert.Equal(t, "00:05", FormatMinutes(1445))
	assert.Equal(t, "23:45", FormatMinutes(-15))
}
