package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// RegisterStaff registers STAFF-scoped endpoints under
// /v1/staff/venues/:venueId.  The token's venue must match the path.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff/venues/:venueId",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleStaff),
		middleware.VenueScope(),
	)

	// ---- Reservations ----
	g.GET("/reservations", s.ListReservations)
	g.POST("/reservations", s.CreateReservation)
	g.GET("/reservations/:id", s.GetReservation)
	g.PATCH("/reservations/:id", s.UpdateReservation)
	g.POST("/reservations/:id/status", s.ChangeStatus)
	g.POST("/reservations/:id/cancel", s.Cancel)
	g.POST("/reservations/:id/guest-token", s.IssueGuestToken)

	// ---- Blackout dates ----
	g.POST("/blackouts", s.AddBlackout)
	g.DELETE("/blackouts/:date", s.DeleteBlackout)
}
