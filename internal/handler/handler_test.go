package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/availability"
	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/conflict"
	"github.com/iliyamo/venue-booking/internal/localtime"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/policy"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
	"github.com/iliyamo/venue-booking/internal/utils"
)

const (
	secret = "handler-test"
	day    = "2024-07-04" // Thursday, demo venue open 17:00-22:00
)

type server struct {
	e     *echo.Echo
	store *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	now, err := localtime.ToInstant("America/New_York", day, "12:00")
	require.NoError(t, err)
	clock := func() time.Time { return now }

	store := memory.Demo()
	store.SetClock(clock)
	det := conflict.NewDetector()
	eng := availability.NewEngine(store, det, clock)
	svc := &Services{
		Store:     store,
		Evaluator: policy.NewEvaluator(store),
		Engine:    eng,
		Manager:   booking.NewManager(store, eng, det, nil, booking.Config{Now: clock}),
		Log:       zap.NewNop(),
		JWTSecret: secret,
	}

	e := echo.New()
	e.Validator = NewValidator()
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }

	// mirrors the router package without importing it
	pub := NewPublicHandler(svc)
	v := e.Group("/v1/venues/:venueId")
	v.GET("/evaluate-day", pub.EvaluateDay, pass)
	v.GET("/availability", pub.Availability, pass)
	v.POST("/holds", pub.CreateHold)
	v.GET("/holds/:holdId", pub.GetHold)
	v.POST("/holds/:holdId/confirm", pub.ConfirmHold)

	staff := NewStaffHandler(svc)
	s := e.Group("/v1/staff/venues/:venueId", middleware.JWTAuth(secret), middleware.RequireRole(utils.RoleStaff), middleware.VenueScope())
	s.GET("/reservations", staff.ListReservations)
	s.POST("/reservations", staff.CreateReservation)
	s.GET("/reservations/:id", staff.GetReservation)
	s.PATCH("/reservations/:id", staff.UpdateReservation)
	s.POST("/reservations/:id/status", staff.ChangeStatus)
	s.POST("/reservations/:id/cancel", staff.Cancel)
	s.POST("/reservations/:id/guest-token", staff.IssueGuestToken)
	s.POST("/blackouts", staff.AddBlackout)
	s.DELETE("/blackouts/:date", staff.DeleteBlackout)

	guest := NewGuestHandler(svc)
	g := e.Group("/v1/guest/venues/:venueId/reservations/:id", middleware.JWTAuth(secret), middleware.RequireRole(utils.RoleGuest), middleware.VenueScope())
	g.GET("", guest.Get)
	g.PATCH("", guest.UpdateContact)
	g.POST("/cancel", guest.Cancel)
	g.POST("/reschedule", guest.Reschedule)

	t.Cleanup(svc.Dispatcher.Wait)
	return &server{e: e, store: store}
}

func (s *server) call(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func staffToken(t *testing.T) string {
	tok, err := utils.NewAccessToken(secret, utils.TokenRequest{Role: utils.RoleStaff, VenueID: 1, TTL: time.Hour})
	require.NoError(t, err)
	return tok.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	Conflict json.RawMessage `json:"conflict"`
	Fields   []string        `json:"fields"`
}

func TestEvaluateDay(t *testing.T) {
	s := newServer(t)

	rec := s.call(t, http.MethodGet, "/v1/venues/1/evaluate-day?date="+day, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[policy.DayPlan](t, rec)
	assert.NotEmpty(t, plan.Slots)
	assert.Equal(t, plan.PolicyHash, rec.Header().Get(HeaderPolicyHash))

	rec = s.call(t, http.MethodGet, "/v1/venues/1/evaluate-day", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailability(t *testing.T) {
	s := newServer(t)

	rec := s.call(t, http.MethodGet, "/v1/venues/1/availability?date="+day+"&time=19:00&party_size=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[availability.Result](t, rec)
	assert.NotEmpty(t, res.Tables)
	assert.Equal(t, res.PolicyHash, rec.Header().Get(HeaderPolicyHash))

	rec = s.call(t, http.MethodGet, "/v1/venues/1/availability?date="+day+"&time=19:00&party_size=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.call(t, http.MethodGet, "/v1/venues/99/availability?date="+day+"&time=19:00&party_size=2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "venue_not_found", decode[errorBody](t, rec).Error)
}

func TestHoldThenConfirm(t *testing.T) {
	s := newServer(t)

	rec := s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "time": "19:00", "party_size": 2, "table_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hold := decode[booking.HoldResult](t, rec).Hold

	path := "/v1/venues/1/holds/" + strconv.FormatUint(hold.ID, 10)
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, path+"?token=wrong", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, path+"?token="+hold.Token, "", nil).Code)

	// a second hold on the same table conflicts
	rec = s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "time": "19:00", "party_size": 2, "table_id": 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "slot_conflict", body.Error)
	assert.NotEmpty(t, body.Conflict)

	rec = s.call(t, http.MethodPost, path+"/confirm", "", echo.Map{"token": hold.Token, "guest": echo.Map{"name": "Ada", "email": "ada@example.com"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var confirmed struct {
		Reservation struct {
			ID uint64 `json:"id"`
		} `json:"reservation"`
		GuestToken utils.AccessToken `json:"guest_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	require.NotZero(t, confirmed.Reservation.ID)

	// the guest token reaches exactly this reservation
	guestPath := "/v1/guest/venues/1/reservations/" + strconv.FormatUint(confirmed.Reservation.ID, 10)
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodGet, guestPath, confirmed.GuestToken.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, "/v1/guest/venues/1/reservations/999", confirmed.GuestToken.Token, nil).Code)

	// confirming again fails
	rec = s.call(t, http.MethodPost, path+"/confirm", "", echo.Map{"token": hold.Token, "guest": echo.Map{"name": "Ada"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "hold_already_consumed", decode[errorBody](t, rec).Error)
}

func TestCreateHoldValidation(t *testing.T) {
	s := newServer(t)
	rec := s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "party_size": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[errorBody](t, rec).Error)

	rec = s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "time": "19:00", "party_size": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "party_size_not_served", decode[errorBody](t, rec).Error)

	rec = s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "time": "19:00", "party_size": 4, "table_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "table_too_small", decode[errorBody](t, rec).Error)
}

func createReservation(t *testing.T, s *server, clock string) uint64 {
	t.Helper()
	rec := s.call(t, http.MethodPost, "/v1/staff/venues/1/reservations", staffToken(t), echo.Map{
		"date": day, "time": clock, "party_size": 2, "auto_assign": true, "guest": echo.Map{"name": "Grace"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[booking.ReservationResult](t, rec).Reservation.ID
}

func TestStaffReservationLifecycle(t *testing.T) {
	s := newServer(t)
	tok := staffToken(t)
	id := createReservation(t, s, "18:00")
	path := "/v1/staff/venues/1/reservations/" + strconv.FormatUint(id, 10)

	rec := s.call(t, http.MethodGet, "/v1/staff/venues/1/reservations?date="+day, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Grace"`)

	rec = s.call(t, http.MethodPatch, path, tok, echo.Map{"notes": "window seat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "window seat", decode[booking.ReservationResult](t, rec).Reservation.Notes)

	rec = s.call(t, http.MethodPost, path+"/status", tok, echo.Map{"status": "SEATED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.call(t, http.MethodPost, path+"/status", tok, echo.Map{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.call(t, http.MethodPost, path+"/status", tok, echo.Map{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorBody](t, rec).Error)

	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodGet, "/v1/staff/venues/1/reservations/999", tok, nil).Code)
}

func TestStaffScopedToTokenVenue(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.call(t, http.MethodGet, "/v1/staff/venues/1/reservations?date="+day, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.call(t, http.MethodGet, "/v1/staff/venues/2/reservations?date="+day, staffToken(t), nil).Code)
}

func TestBlackoutClosesDay(t *testing.T) {
	s := newServer(t)
	tok := staffToken(t)

	rec := s.call(t, http.MethodPost, "/v1/staff/venues/1/blackouts", tok, echo.Map{"date": day, "reason": "private event"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusConflict, s.call(t, http.MethodPost, "/v1/staff/venues/1/blackouts", tok, echo.Map{"date": day}).Code)

	rec = s.call(t, http.MethodGet, "/v1/venues/1/availability?date="+day+"&time=19:00&party_size=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[availability.Result](t, rec).Tables)

	rec = s.call(t, http.MethodGet, "/v1/venues/1/evaluate-day?date="+day, "", nil)
	plan := decode[policy.DayPlan](t, rec)
	require.Len(t, plan.Slots, 1)
	assert.Equal(t, policy.ReasonBlackout, plan.Slots[0].Reason)

	rec = s.call(t, http.MethodPost, "/v1/venues/1/holds", "", echo.Map{"date": day, "time": "19:00", "party_size": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "policy_window_closed", decode[errorBody](t, rec).Error)

	assert.Equal(t, http.StatusNoContent, s.call(t, http.MethodDelete, "/v1/staff/venues/1/blackouts/"+day, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.call(t, http.MethodDelete, "/v1/staff/venues/1/blackouts/"+day, tok, nil).Code)
}

func guestToken(t *testing.T, s *server, id uint64) string {
	t.Helper()
	rec := s.call(t, http.MethodPost, "/v1/staff/venues/1/reservations/"+strconv.FormatUint(id, 10)+"/guest-token", staffToken(t), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[utils.AccessToken](t, rec).Token
}

func TestGuestSelfService(t *testing.T) {
	s := newServer(t)
	id := createReservation(t, s, "19:00")
	tok := guestToken(t, s, id)
	path := "/v1/guest/venues/1/reservations/" + strconv.FormatUint(id, 10)

	rec := s.call(t, http.MethodPatch, path, tok, echo.Map{"party_size": 4, "guest": echo.Map{"name": "G"}})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"party_size"}, decode[errorBody](t, rec).Fields)

	rec = s.call(t, http.MethodPatch, path, tok, echo.Map{"guest": echo.Map{"name": "Grace H", "phone": "555"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Grace H", decode[booking.ReservationResult](t, rec).Reservation.Guest.Name)

	rec = s.call(t, http.MethodPost, path+"/reschedule", tok, echo.Map{"date": day, "time": "20:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[booking.ReservationResult](t, rec)
	require.NotNil(t, moved.Previous)
	assert.Equal(t, "20:00", moved.Reservation.Time)

	// the old reservation is cancelled, so the token now fails on cancel
	rec = s.call(t, http.MethodPost, path+"/cancel", tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	newTok := guestToken(t, s, moved.Reservation.ID)
	newPath := "/v1/guest/venues/1/reservations/" + strconv.FormatUint(moved.Reservation.ID, 10)
	rec = s.call(t, http.MethodPost, newPath+"/cancel", newTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", string(decode[booking.ReservationResult](t, rec).Reservation.Status))
}

func TestStatusForKinds(t *testing.T) {
	assert.Equal(t, http.StatusGone, StatusFor("HOLD_EXPIRED"))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor("POLICY_WINDOW_CLOSED"))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_ELSE"))
}
