package middleware

// identity.go reads the caller identity stored by JWTAuth and scopes
// requests to the venue and reservation named in the token.

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/utils"
)

// TokenVenueID returns the venue claim, or 0 when unauthenticated.
func TokenVenueID(c echo.Context) uint64 {
	v, _ := c.Get(CtxVenueID).(uint64)
	return v
}

// TokenReservationID returns the reservation claim of a guest token.
func TokenReservationID(c echo.Context) uint64 {
	v, _ := c.Get(CtxReservationID).(uint64)
	return v
}

// userID returns the token subject or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// VenueScope rejects tokens whose venue claim does not match the :venueId
// path parameter.  Guest tokens must also match :id when the route has one.
func VenueScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			venueID, err := strconv.ParseUint(c.Param("venueId"), 10, 64)
			if err != nil || venueID != TokenVenueID(c) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			if role, _ := c.Get(CtxRole).(string); role == utils.RoleGuest {
				if raw := c.Param("id"); raw != "" {
					id, err := strconv.ParseUint(raw, 10, 64)
					if err != nil || id != TokenReservationID(c) {
						return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
					}
				}
			}
			return next(c)
		}
	}
}
