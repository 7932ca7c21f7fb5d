package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/apperror"
	"github.com/iliyamo/venue-booking/internal/repository"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindInvalidInput:         http.StatusBadRequest,
	apperror.KindNotFound:             http.StatusNotFound,
	apperror.KindForbiddenFieldChange: http.StatusForbidden,
	apperror.KindPolicyWindowClosed:   http.StatusUnprocessableEntity,
	apperror.KindInvalidTransition:    http.StatusConflict,
	apperror.KindHoldAlreadyConsumed:  http.StatusConflict,
	apperror.KindHoldSlotMismatch:     http.StatusConflict,
	apperror.KindSlotConflict:         http.StatusConflict,
	apperror.KindHoldExpired:          http.StatusGone,
}

// StatusFor maps a core error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "message": ...} with the
// conflict detail or offending fields when present.  Errors outside the
// taxonomy are logged and reported as 500 without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	if e, ok := apperror.As(err); ok {
		body := echo.Map{"error": e.Code}
		if e.Message != "" {
			body["message"] = e.Message
		}
		if e.Conflict != nil {
			body["conflict"] = e.Conflict
		}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		return c.JSON(StatusFor(e.Kind), body)
	}
	switch {
	case errors.Is(err, repository.ErrBlackoutNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "blackout_not_found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
