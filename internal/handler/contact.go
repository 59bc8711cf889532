package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/service"
)

// ContactAPI is the part of service.ContactService used over HTTP.
type ContactAPI interface {
	Create(ctx context.Context, in service.ContactInput, userID *uint64) (model.ContactMessage, error)
	List(ctx context.Context, f model.ContactFilter) (model.Page[model.ContactMessage], error)
	SetStatus(ctx context.Context, id uint64, status model.ContactStatus) (model.ContactMessage, error)
}

type ContactHandler struct {
	base
	contact ContactAPI
}

func NewContactHandler(contact ContactAPI, timeout time.Duration, log zerolog.Logger) *ContactHandler {
	return &ContactHandler{base: newBase(timeout, log), contact: contact}
}

type contactReq struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
	Message string `json:"message" validate:"required,min=5,max=5000"`
}

type contactStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// Create accepts the public contact form.  A signed-in sender is recorded.
func (h *ContactHandler) Create(c echo.Context) error {
	var req contactReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	var uid *uint64
	if id, ok := middleware.UserID(c); ok {
		uid = &id
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	m, err := h.contact.Create(ctx, service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}, uid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// List serves the staff inbox: ?status, ?search, ?page, ?limit.
func (h *ContactHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.contact.List(ctx, model.ContactFilter{
		Status: model.ContactStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ContactHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req contactStatusReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	m, err := h.contact.SetStatus(ctx, id, model.ContactStatus(req.Status))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
