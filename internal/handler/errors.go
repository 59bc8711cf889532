package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/service"
)

// respondError writes the JSON error for err.  Service kinds map to 4xx;
// a partially failed order is a 200 carrying the order and points_error
// (the service has already logged it); anything else is logged and answered
// with a generic 500.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	var (
		he *echo.HTTPError
		se *service.Error
		pf *service.PartialFailureError
	)
	switch {
	case errors.As(err, &pf):
		return c.JSON(http.StatusOK, echo.Map{
			"order":        pf.Order,
			"points_error": "order saved but reward points were not credited; retry with settle-points",
		})
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return c.JSON(he.Code, echo.Map{"error": msg})
	case errors.As(err, &se):
		return c.JSON(statusFor(se.Kind), echo.Map{"error": se.Msg})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", c.Path()).Msg("request timed out")
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "request timed out"})
	}
	log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

func statusFor(kind error) int {
	switch kind {
	case service.ErrValidation:
		return http.StatusBadRequest
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrConflict:
		return http.StatusConflict
	case service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
