package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// RegisterGuest registers the guest self-service routes.  A guest token
// only reaches the reservation it was issued for.
func RegisterGuest(e *echo.Echo, h *handler.GuestHandler, jwtSecret string) {
	g := e.Group(
		"/v1/guest/venues/:venueId/reservations/:id",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleGuest),
		middleware.VenueScope(),
	)
	g.GET("", h.Get)
	g.PATCH("", h.UpdateContact)
	g.POST("/cancel", h.Cancel)
	g.POST("/reschedule", h.Reschedule)
}
