package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
)

func sample() BookingEvent {
	return NewBookingEvent(booking.Event{
		ID:            "ev-1",
		Type:          booking.EventConfirmed,
		VenueID:       1,
		ReservationID: 42,
		Status:        model.StatusConfirmed,
		Date:          "2024-07-04",
		Time:          "19:00",
		TableIDs:      []uint64{2, 3},
		PartySize:     6,
		OccurredAt:    time.Date(2024, 7, 4, 16, 0, 0, 0, time.UTC),
	})
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(sample())
	assert.Equal(t, "[2024-07-04T16:00:00Z] reservation confirmed | event_id=ev-1 | venue_id=1 | reservation_id=42 | status=CONFIRMED | slot=2024-07-04 19:00 | party=6 | tables=[2,3]\n", line)
}

func TestHandleMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking-events.log")
	body, err := json.Marshal(sample())
	require.NoError(t, err)

	require.NoError(t, HandleMessage(path, body))
	require.NoError(t, HandleMessage(path, body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.log")
	assert.Error(t, HandleMessage(path, []byte("{")))
	assert.Error(t, HandleMessage(path, []byte(`{"venue_id":1}`)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
