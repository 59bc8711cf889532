package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// UploadAPI is the part of service.UploadService used over HTTP.
type UploadAPI interface {
	Upload(ctx context.Context, originalName string, r io.Reader, uploadedBy *uint64) (model.FileUpload, error)
	List(ctx context.Context, page, limit int) (model.Page[model.FileUpload], error)
	Delete(ctx context.Context, id uint64) error
}

type UploadHandler struct {
	base
	uploads UploadAPI
}

func NewUploadHandler(uploads UploadAPI, timeout time.Duration, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{base: newBase(timeout, log), uploads: uploads}
}

// Upload stores the multipart field "file".
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, echo.NewHTTPError(http.StatusBadRequest, "file field is required"))
	}
	src, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer src.Close()

	var by *uint64
	if uid, ok := middleware.UserID(c); ok {
		by = &uid
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.uploads.Upload(ctx, fh.Filename, src, by)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *UploadHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.uploads.List(ctx, queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UploadHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.uploads.Delete(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
