package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// StaffHandler manages reservations and blackout dates of one venue.  All
// routes assume JWTAuth, RequireRole(STAFF) and VenueScope ran first.
type StaffHandler struct {
	*Services
}

// NewStaffHandler constructs a StaffHandler.
func NewStaffHandler(s *Services) *StaffHandler {
	s.check()
	return &StaffHandler{Services: s}
}

func (h *StaffHandler) ids(c echo.Context) (venueID, id uint64, err error) {
	if venueID, err = idParam(c, "venueId"); err != nil {
		return 0, 0, err
	}
	if id, err = idParam(c, "id"); err != nil {
		return 0, 0, err
	}
	return venueID, id, nil
}

// respond dispatches side effects and writes the write result.
func (h *StaffHandler) respond(c echo.Context, status int, res *booking.ReservationResult) error {
	h.dispatch(res.Events, res.CacheInvalidations)
	return c.JSON(status, res)
}

// ListReservations handles GET /reservations?date=YYYY-MM-DD.
func (h *StaffHandler) ListReservations(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	date := c.QueryParam("date")
	if _, err := localtime.ParseDate(date); err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Store.ListReservations(c.Request().Context(), venueID, date)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if list == nil {
		list = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "reservations": list})
}

type createReservationRequest struct {
	HoldID      uint64                  `json:"hold_id"`
	Date        string                  `json:"date" validate:"required_without=HoldID"`
	Time        string                  `json:"time" validate:"required_without=HoldID"`
	PartySize   int                     `json:"party_size" validate:"min=0"`
	TableIDs    []uint64                `json:"table_ids"`
	AutoAssign  bool                    `json:"auto_assign"`
	Status      model.ReservationStatus `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED"`
	DurationMin int                     `json:"duration_min" validate:"min=0"`
	Guest       guestBody               `json:"guest"`
	Notes       string                  `json:"notes" validate:"max=500"`
}

// CreateReservation handles POST /reservations, either directly or by
// converting hold_id.
func (h *StaffHandler) CreateReservation(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body createReservationRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.CreateReservation(c.Request().Context(), booking.ReservationInput{
		VenueID:     venueID,
		HoldID:      body.HoldID,
		Date:        body.Date,
		Time:        body.Time,
		PartySize:   body.PartySize,
		TableIDs:    body.TableIDs,
		AutoAssign:  body.AutoAssign,
		Status:      body.Status,
		DurationMin: body.DurationMin,
		Guest:       body.Guest.contact(),
		Notes:       body.Notes,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, http.StatusCreated, res)
}

// GetReservation handles GET /reservations/:id.
func (h *StaffHandler) GetReservation(c echo.Context) error {
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

// UpdateReservation handles PATCH /reservations/:id.  Omitted fields are
// left unchanged.
func (h *StaffHandler) UpdateReservation(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in booking.UpdateInput
	if err := bind(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	in.VenueID, in.ReservationID = venueID, id
	res, err := h.Manager.UpdateReservation(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, http.StatusOK, res)
}

type statusRequest struct {
	Status model.ReservationStatus `json:"status" validate:"required"`
}

// ChangeStatus handles POST /reservations/:id/status.
func (h *StaffHandler) ChangeStatus(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body statusRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.ChangeStatus(c.Request().Context(), venueID, id, body.Status)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, http.StatusOK, res)
}

// Cancel handles POST /reservations/:id/cancel.
func (h *StaffHandler) Cancel(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Manager.Cancel(c.Request().Context(), venueID, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return h.respond(c, http.StatusOK, res)
}

// IssueGuestToken handles POST /reservations/:id/guest-token: it mints the
// bearer token a guest uses to manage this reservation.
func (h *StaffHandler) IssueGuestToken(c echo.Context) error {
	venueID, id, err := h.ids(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if _, err := h.Manager.GetReservation(c.Request().Context(), venueID, id); err != nil {
		return writeError(c, h.Log, err)
	}
	tok, err := utils.NewAccessToken(h.JWTSecret, utils.TokenRequest{
		Role:          utils.RoleGuest,
		VenueID:       venueID,
		ReservationID: id,
		TTL:           h.GuestTokenTTL,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, tok)
}

type blackoutRequest struct {
	Date   string `json:"date" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// AddBlackout handles POST /blackouts.  The date's cached availability is
// dropped.
func (h *StaffHandler) AddBlackout(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var body blackoutRequest
	if err := bind(c, &body); err != nil {
		return writeError(c, h.Log, err)
	}
	if _, err := localtime.ParseDate(body.Date); err != nil {
		return writeError(c, h.Log, err)
	}
	b := model.BlackoutDate{VenueID: venueID, Date: body.Date, Reason: body.Reason}
	if err := h.Store.AddBlackout(c.Request().Context(), &b); err != nil {
		return writeError(c, h.Log, err)
	}
	h.dispatch(nil, []booking.CacheInvalidation{{VenueID: venueID, Date: b.Date}})
	return c.JSON(http.StatusCreated, b)
}

// DeleteBlackout handles DELETE /blackouts/:date.
func (h *StaffHandler) DeleteBlackout(c echo.Context) error {
	venueID, err := idParam(c, "venueId")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	date := c.Param("date")
	if _, err := localtime.ParseDate(date); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Store.DeleteBlackout(c.Request().Context(), venueID, date); err != nil {
		return writeError(c, h.Log, err)
	}
	h.dispatch(nil, []booking.CacheInvalidation{{VenueID: venueID, Date: date}})
	return c.NoContent(http.StatusNoContent)
}
