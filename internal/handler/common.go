package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
)

var errNoUser = echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")

// base carries what every handler needs.
type base struct {
	timeout time.Duration
	log     zerolog.Logger
}

func newBase(timeout time.Duration, log zerolog.Logger) base {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return base{timeout: timeout, log: log}
}

func (b base) fail(c echo.Context, err error) error {
	return respondError(c, b.log, err)
}

// ctx bounds the store work of one request.
func (b base) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.timeout)
}

// getUserID returns the caller set by the auth middleware.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// bind decodes the body and runs the registered validator.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name))); err == nil {
		return v
	}
	return def
}

func queryUint(c echo.Context, name string) *uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam(name)), 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

func queryFloat(c echo.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.QueryParam(name)))
	return v
}
