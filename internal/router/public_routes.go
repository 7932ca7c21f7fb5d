package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
)

// RegisterPublic registers the guest-facing booking flow.  Read endpoints
// go through the response cache; hold creation through the rate limiter.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/venues/:venueId")
	g.GET("/evaluate-day", p.EvaluateDay, cache)
	g.GET("/availability", p.Availability, cache)
	g.POST("/holds", p.CreateHold, limiter)
	g.GET("/holds/:holdId", p.GetHold)
	g.POST("/holds/:holdId/confirm", p.ConfirmHold)
}
