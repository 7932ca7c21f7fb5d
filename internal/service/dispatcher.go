package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/cache"
	"github.com/iliyamo/venue-booking/internal/queue"
)

// Dispatcher runs the post-commit side effects of a booking operation off
// the request path.  Failures are logged and never reach the caller.
type Dispatcher struct {
	publisher   Publisher
	invalidator cache.Invalidator
	log         *zap.Logger
	timeout     time.Duration
	wg          sync.WaitGroup
}

// NewDispatcher wires a Dispatcher.  Nil collaborators become no-ops.
func NewDispatcher(p Publisher, inv cache.Invalidator, log *zap.Logger) *Dispatcher {
	if p == nil {
		p = NopPublisher{}
	}
	if inv == nil {
		inv = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{publisher: p, invalidator: inv, log: log, timeout: 5 * time.Second}
}

// Dispatch fires events and invalidations in the background.
func (d *Dispatcher) Dispatch(events []booking.Event, invalidations []booking.CacheInvalidation) {
	if len(events) == 0 && len(invalidations) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.Run(ctx, events, invalidations)
	}()
}

// Run performs the side effects synchronously.  Invalidations go first so
// a consumer reacting to an event never reads stale availability.
func (d *Dispatcher) Run(ctx context.Context, events []booking.Event, invalidations []booking.CacheInvalidation) {
	for _, inv := range invalidations {
		if err := d.invalidator.Invalidate(ctx, inv.VenueID, inv.Date); err != nil {
			d.log.Warn("cache invalidation failed",
				zap.Uint64("venue_id", inv.VenueID),
				zap.String("date", inv.Date),
				zap.Error(err),
			)
		}
	}
	if len(events) == 0 {
		return
	}
	payload := make([]queue.BookingEvent, len(events))
	for i, e := range events {
		payload[i] = queue.NewBookingEvent(e)
	}
	if err := d.publisher.Publish(ctx, payload); err != nil {
		d.log.Error("event publish failed", zap.Int("events", len(payload)), zap.Error(err))
	}
}

// Wait blocks until in-flight dispatches finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }
