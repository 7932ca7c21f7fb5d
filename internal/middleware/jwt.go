package middleware // middleware holds the reusable HTTP middleware of the booking API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/utils"
)

// Context keys populated by JWTAuth.
const (
	CtxUserID        = "user_id"
	CtxRole          = "role"
	CtxVenueID       = "venue_id"
	CtxReservationID = "reservation_id"
)

// JWTAuth validates a Bearer access token and injects its subject, role,
// venue and reservation claims into the request context.  The secret must
// match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxVenueID, claims.VenueID)
			c.Set(CtxReservationID, claims.ReservationID)
			return next(c)
		}
	}
}
