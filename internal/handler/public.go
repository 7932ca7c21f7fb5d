package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// PublicHandler serves the unauthenticated booking flow: browse open
// slots, check availability, hold a slot and confirm it.
type PublicHandler struct {
	*Services
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(s *Services) *PublicHandler {
	s.check()
	return &PublicHandler{Services: s}
}

// EvaluateDay handles GET /v1/venues/:venueId/evaluate-day?date=YYYY-MM-DD.
func (h *PublicHandler) EvaluateDay(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	date := c.QueryParam("date")
	if date == "" {
		return writeError(c, h.Log, apperror.ErrInvalidInput.WithMessage("date is required"))
	}
	plan, err := h.Evaluator.EvaluateDay(c.Request().Context(), venueID, date)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(HeaderPolicyHash, plan.PolicyHash)
	return c.JSON(http.StatusOK, plan)
}

// Availability handles GET /v1/venues/:venueId/availability with query
// parameters date, time, party_size and optional area and table_id.
func (h *PublicHandler) Availability(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	party, err := intQuery(c, "party_size")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	tableID, err := intQuery(c, "table_id")
	if err != nil || tableID < 0 {
		return writeError(c, h.Log, apperror.ErrInvalidInput.WithMessage("invalid table_id"))
	}
	req := availability.Request{
		VenueID:   venueID,
		Date:      c.QueryParam("date"),
		Time:      c.QueryParam("time"),
		PartySize: party,
		Area:      c.QueryParam("area"),
		TableID:   uint64(tableID),
	}
	res, err := h.Engine.GetAvailability(c.Request().Context(), req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(HeaderPolicyHash, res.PolicyHash)
	return c.JSON(http.StatusOK, res)
}

type holdRequest struct {
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	PartySize int    `json:"party_size" validate:"required,min=1"`
	TableID   uint64 `json:"table_id"`
}

// CreateHold handles POST /v1/venues/:venueId/holds.  The response carries
// the hold token the client needs to read or confirm the hold.
func (h *PublicHandler) CreateHold(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body holdRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.CreateHold(c.Request().Context(), booking.HoldInput{
		VenueID:   venueID,
		Date:      body.Date,
		Time:      body.Time,
		PartySize: body.PartySize,
		TableID:   body.TableID,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.dispatch(res.Events, res.CacheInvalidations)
	return c.JSON(http.StatusCreated, res)
}

// holdByToken loads a hold and hides it unless token matches.
func (h *PublicHandler) holdByToken(c echo.Context, token string) (*model.Hold, error) {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return nil, err
	}
	holdID, err := idParam(c, "holdId")
	if err != nil {
		return nil, err
	}
	hold, err := h.Manager.GetHold(c.Request().Context(), venueID, holdID)
	if err != nil {
		return nil, err
	}
	if token == "" || hold.Token != token {
		return nil, apperror.ErrHoldNotFound
	}
	return hold, nil
}

// GetHold handles GET /v1/venues/:venueId/holds/:holdId?token=...
func (h *PublicHandler) GetHold(c echo.Context) error {
	hold, err := h.holdByToken(c, c.QueryParam("token"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, hold)
}

type confirmRequest struct {
	Token string    `json:"token" validate:"required"`
	Guest guestBody `json:"guest"`
	Notes string    `json:"notes" validate:"max=500"`
}

// ConfirmHold handles POST /v1/venues/:venueId/holds/:holdId/confirm.  It
// converts the hold into a CONFIRMED reservation and returns a guest token
// scoped to that reservation.
func (h *PublicHandler) ConfirmHold(c echo.Context) error {
	var body confirmRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	hold, err := h.holdByToken(c, body.Token)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.CreateReservation(c.Request().Context(), booking.ReservationInput{
		VenueID: hold.VenueID,
		HoldID:  hold.ID,
		Guest:   body.Guest.contact(),
		Notes:   body.Notes,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.dispatch(res.Events, res.CacheInvalidations)

	tok, err := utils.NewAccessToken(h.JWTSecret, utils.TokenRequest{
		Role:          utils.RoleGuest,
		VenueID:       res.Reservation.VenueID,
		ReservationID: res.Reservation.ID,
		TTL:           h.GuestTokenTTL,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation":         res.Reservation,
		"events":              res.Events,
		"cache_invalidations": res.CacheInvalidations,
		"guest_token":         tok,
	})
}
