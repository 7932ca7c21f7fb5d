package service

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// SharedStore collapses concurrent config loads for the same venue into a
// single store read.  Every other call goes straight to the wrapped store.
type SharedStore struct {
	repository.Store
	sfGroup singleflight.Group
}

// NewSharedStore wraps s.
func NewSharedStore(s repository.Store) *SharedStore {
	return &SharedStore{Store: s}
}

// LoadVenueConfig returns a deep per-caller copy of the shared result.
// The shared read ignores the first caller's cancellation so one caller
// giving up does not fail the others; each caller still stops waiting when
// its own ctx ends.
func (s *SharedStore) LoadVenueConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.sfGroup.DoChan(strconv.FormatUint(venueID, 10), func() (interface{}, error) {
		return s.Store.LoadVenueConfig(shared, venueID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		cfg := res.Val.(*model.VenueConfig).Clone()
		return &cfg, nil
	}
}
