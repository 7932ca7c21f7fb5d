package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

var start = time.Date(2024, 7, 4, 23, 0, 0, 0, time.UTC) // 19:00 in New York

func reservation(clock string, tables ...uint64) model.Reservation {
	return model.Reservation{
		VenueID: 1, Status: model.StatusConfirmed, Date: "2024-07-04", Time: clock,
		StartsAt: start, DurationMin: 75, PartySize: 2, TableIDs: tables,
		Guest: model.GuestContact{Name: "Ada"},
	}
}

func TestClaimUniqueness(t *testing.T) {
	ctx := context.Background()
	s := Demo()

	_, err := s.SeedReservation(ctx, reservation("19:00", 1))
	require.NoError(t, err)

	_, err = s.SeedReservation(ctx, reservation("19:00", 1))
	assert.ErrorIs(t, err, repository.ErrDuplicateSlot)

	// another table at the same slot is fine
	_, err = s.SeedReservation(ctx, reservation("19:00", 2))
	assert.NoError(t, err)
}

func TestTablelessClaimsCollide(t *testing.T) {
	ctx := context.Background()
	s := Demo()
	_, err := s.SeedReservation(ctx, reservation("19:00"))
	require.NoError(t, err)
	_, err = s.SeedReservation(ctx, reservation("19:00"))
	assert.ErrorIs(t, err, repository.ErrDuplicateSlot)
}

func TestFailedTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := Demo()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r := reservation("19:00", 1)
		if err := tx.InsertReservation(ctx, &r); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.ListReservations(ctx, 1, "2024-07-04")
	require.NoError(t, err)
	assert.Empty(t, list)

	// the claim was undone too
	_, err = s.SeedReservation(ctx, reservation("19:00", 1))
	assert.NoError(t, err)
}

func TestExpireHoldsReleasesClaims(t *testing.T) {
	ctx := context.Background()
	s := Demo()
	table := uint64(3)
	h, err := s.SeedHold(ctx, model.Hold{
		VenueID: 1, Token: "t", Status: model.HoldHeld, TableID: &table,
		Date: "2024-07-04", Time: "19:00", StartsAt: start, DurationMin: 75, PartySize: 2,
		ExpiresAt: start.Add(-time.Hour),
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.ExpireHolds(ctx, 1, start)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		r := reservation("19:00", table)
		return tx.InsertReservation(ctx, &r)
	})
	require.NoError(t, err)

	got, err := s.GetHold(ctx, 1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, model.HoldExpired, got.Status)
}

func TestListReservationsOrdered(t *testing.T) {
	ctx := context.Background()
	s := Demo()
	late := reservation("20:00", 1)
	late.StartsAt = start.Add(time.Hour)
	_, err := s.SeedReservation(ctx, late)
	require.NoError(t, err)
	_, err = s.SeedReservation(ctx, reservation("19:00", 2))
	require.NoError(t, err)

	list, err := s.ListReservations(ctx, 1, "2024-07-04")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "19:00", list[0].Time)
	assert.Equal(t, "20:00", list[1].Time)
}

func TestBlackouts(t *testing.T) {
	ctx := context.Background()
	s := Demo()
	require.NoError(t, s.AddBlackout(ctx, &model.BlackoutDate{VenueID: 1, Date: "2024-12-25"}))
	assert.ErrorIs(t, s.AddBlackout(ctx, &model.BlackoutDate{VenueID: 1, Date: "2024-12-25"}), repository.ErrConflict)
	assert.ErrorIs(t, s.AddBlackout(ctx, &model.BlackoutDate{VenueID: 9, Date: "2024-12-25"}), repository.ErrVenueNotFound)

	cfg, err := s.LoadVenueConfig(ctx, 1)
	require.NoError(t, err)
	_, closed := cfg.BlackoutOn("2024-12-25")
	assert.True(t, closed)

	require.NoError(t, s.DeleteBlackout(ctx, 1, "2024-12-25"))
	assert.ErrorIs(t, s.DeleteBlackout(ctx, 1, "2024-12-25"), repository.ErrBlackoutNotFound)
}
