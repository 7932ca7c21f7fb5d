package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
)

// GuestHandler lets a guest manage the single reservation named in their
// token.  Routes assume JWTAuth, RequireRole(GUEST) and VenueScope.
type GuestHandler struct {
	*Services
}

// NewGuestHandler constructs a GuestHandler.
func NewGuestHandler(s *Services) *GuestHandler {
	s.check()
	return &GuestHandler{Services: s}
}

func (h *GuestHandler) ids(c echo.Context) (uint64, uint64, error) {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return 0, 0, err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	return venueID, id, nil
}

func (h *GuestHandler) respond(c echo.Context, res *booking.ReservationResult) error {
	h.dispatch(res.Events, res.CacheInvalidations)
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/guest/venues/:venueId/reservations/:id.
func (h *GuestHandler) Get(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	r, err := h.Manager.GetReservation(c.Request().Context(), venueID, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel handles POST .../cancel, subject to the venue's cancel window.
func (h *GuestHandler) Cancel(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.GuestCancel(c.Request().Context(), venueID, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, res)
}

type rescheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// Reschedule handles POST .../reschedule.
func (h *GuestHandler) Reschedule(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body rescheduleRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.GuestReschedule(c.Request().Context(), booking.RescheduleInput{
		VenueID:       venueID,
		ReservationID: id,
		Date:          body.Date,
		Time:          body.Time,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, res)
}

// UpdateContact handles PATCH /v1/guest/venues/:venueId/reservations/:id.
// Any booking field in the body is refused with 403 naming the fields.
func (h *GuestHandler) UpdateContact(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in booking.UpdateInput
	if err := bind(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	in.VenueID, in.ReservationID = venueID, id
	res, err := h.Manager.GuestUpdateContact(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, res)
}
