package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// ReportAPI is the part of service.ReportService used over HTTP.
type ReportAPI interface {
	Daily(ctx context.Context, date string) (model.RevenueReport, error)
	Range(ctx context.Context, start, end string) ([]model.RevenueReport, error)
	Dashboard(ctx context.Context) (model.Dashboard, error)
	Sales(ctx context.Context, start, end string) ([]model.DailyTotal, error)
	TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error)
}

type ReportHandler struct {
	base
	reports ReportAPI
}

func NewReportHandler(reports ReportAPI, timeout time.Duration, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{base: newBase(timeout, log), reports: reports}
}

// respond runs fn under the request timeout and writes its result.
func respond[T any](h *ReportHandler, c echo.Context, fn func(ctx context.Context) (T, error)) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) Daily(c echo.Context) error {
	return respond(h, c, func(ctx context.Context) (model.RevenueReport, error) {
		return h.reports.Daily(ctx, c.QueryParam("date"))
	})
}

func (h *ReportHandler) Range(c echo.Context) error {
	return respond(h, c, func(ctx context.Context) ([]model.RevenueReport, error) {
		return h.reports.Range(ctx, c.QueryParam("start"), c.QueryParam("end"))
	})
}

func (h *ReportHandler) Dashboard(c echo.Context) error {
	return respond(h, c, h.reports.Dashboard)
}

func (h *ReportHandler) Sales(c echo.Context) error {
	return respond(h, c, func(ctx context.Context) ([]model.DailyTotal, error) {
		return h.reports.Sales(ctx, c.QueryParam("start"), c.QueryParam("end"))
	})
}

func (h *ReportHandler) TopProducts(c echo.Context) error {
	return respond(h, c, func(ctx context.Context) ([]model.TopProduct, error) {
		return h.reports.TopProducts(ctx, queryInt(c, "limit", 0))
	})
}
