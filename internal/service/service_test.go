package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs []queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return p.err
}

type recordingInvalidator struct {
	mu    sync.Mutex
	dates []string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, _ uint64, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date)
	return r.err
}

func events() []booking.Event {
	return []booking.Event{
		{ID: "1", Type: booking.EventCreated, VenueID: 1, ReservationID: 7, Status: model.StatusConfirmed, OccurredAt: time.Now()},
		{ID: "2", Type: booking.EventConfirmed, VenueID: 1, ReservationID: 7, Status: model.StatusConfirmed, OccurredAt: time.Now()},
	}
}

func TestDispatchDeliversEventsAndInvalidations(t *testing.T) {
	pub := &recordingPublisher{}
	inv := &recordingInvalidator{}
	d := NewDispatcher(pub, inv, zap.NewNop())

	d.Dispatch(events(), []booking.CacheInvalidation{{VenueID: 1, Date: "2024-07-04"}, {VenueID: 1, Date: "2024-07-05"}})
	d.Wait()

	require.Len(t, pub.events, 2)
	assert.Equal(t, "created", pub.events[0].Type)
	assert.Equal(t, uint64(7), pub.events[1].ReservationID)
	assert.Equal(t, []string{"2024-07-04", "2024-07-05"}, inv.dates)
}

func TestDispatchSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	inv := &recordingInvalidator{err: errors.New("redis down")}
	d := NewDispatcher(pub, inv, zap.NewNop())

	assert.NotPanics(t, func() {
		d.Run(context.Background(), events(), []booking.CacheInvalidation{{VenueID: 1, Date: "2024-07-04"}})
	})
	assert.Len(t, pub.events, 2)
	assert.Len(t, inv.dates, 1)
}

func TestDispatchNothing(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	d.Dispatch(nil, nil)
	d.Wait()
}

type countingStore struct {
	repository.Store
	loads   atomic.Int32
	release chan struct{}
}

func (c *countingStore) LoadVenueConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error) {
	c.loads.Add(1)
	<-c.release
	return c.Store.LoadVenueConfig(ctx, venueID)
}

func TestSharedStoreCollapsesLoads(t *testing.T) {
	inner := &countingStore{Store: memory.Demo(), release: make(chan struct{})}
	s := NewSharedStore(inner)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*model.VenueConfig, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := s.LoadVenueConfig(context.Background(), 1)
			assert.NoError(t, err)
			results[i] = cfg
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.LessOrEqual(t, inner.loads.Load(), int32(callers))
	assert.GreaterOrEqual(t, inner.loads.Load(), int32(1))
	for _, cfg := range results {
		require.NotNil(t, cfg)
		assert.Equal(t, uint64(1), cfg.Venue.ID)
	}
	// each caller owns its struct
	assert.NotSame(t, results[0], results[1])
}

func TestSharedStoreUnknownVenue(t *testing.T) {
	s := NewSharedStore(memory.Demo())
	_, err := s.LoadVenueConfig(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrVenueNotFound)
}

func TestSharedStoreSurvivesCancelledCaller(t *testing.T) {
	inner := &countingStore{Store: memory.Demo(), release: make(chan struct{})}
	s := NewSharedStore(inner)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.LoadVenueConfig(first, 1)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type loaded struct {
		cfg *model.VenueConfig
		err error
	}
	second := make(chan loaded, 1)
	go func() {
		cfg, err := s.LoadVenueConfig(context.Background(), 1)
		second <- loaded{cfg, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(inner.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, uint64(1), got.cfg.Venue.ID)
}

func TestSharedStoreCopiesDeeply(t *testing.T) {
	inner := &countingStore{Store: memory.Demo(), release: make(chan struct{})}
	s := NewSharedStore(inner)

	results := make(chan *model.VenueConfig, 2)
	for i := 0; i < 2; i++ {
		go func() {
			cfg, err := s.LoadVenueConfig(context.Background(), 1)
			assert.NoError(t, err)
			results <- cfg
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	a, b := <-results, <-results
	require.NotNil(t, a)
	require.NotNil(t, b)

	a.Shifts[0].StartTime = "09:00"
	*a.Pacing[0].MaxReservations = 99
	a.Blackouts = append(a.Blackouts, model.BlackoutDate{Date: "2024-12-25"})

	assert.Equal(t, "17:00", b.Shifts[0].StartTime)
	assert.Equal(t, 4, *b.Pacing[0].MaxReservations)
	assert.Empty(t, b.Blackouts)
}
