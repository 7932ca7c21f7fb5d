// Package handler adapts the booking core to HTTP with echo.  Handlers
// decode and validate requests, call the core and map its error taxonomy
// to status codes; side effects are handed to the dispatcher after a
// successful write.
package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/service"
)

// HeaderPolicyHash carries the policy hash of availability responses.
const HeaderPolicyHash = "X-Policy-Hash"

// Services are the collaborators shared by every handler.
type Services struct {
	Store      repository.Store
	Evaluator  *policy.Evaluator
	Engine     *availability.Engine
	Manager    *booking.Manager
	Dispatcher *service.Dispatcher
	Log        *zap.Logger

	JWTSecret     string        // signs guest tokens handed out on confirmation
	GuestTokenTTL time.Duration // lifetime of those tokens
}

func (s *Services) check() {
	if s.Store == nil || s.Evaluator == nil || s.Engine == nil || s.Manager == nil {
		panic("nil dependency passed to handler")
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Dispatcher == nil {
		s.Dispatcher = service.NewDispatcher(nil, nil, s.Log)
	}
	if s.GuestTokenTTL <= 0 {
		s.GuestTokenTTL = 7 * 24 * time.Hour
	}
}

func (s *Services) dispatch(events []booking.Event, invalidations []booking.CacheInvalidation) {
	s.Dispatcher.Dispatch(events, invalidations)
}

// guestBody is the validated contact payload.
type guestBody struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (g guestBody) contact() model.GuestContact {
	return model.GuestContact{Name: g.Name, Phone: g.Phone, Email: g.Email}
}
