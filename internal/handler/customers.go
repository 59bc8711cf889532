package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// CustomerAPI is the part of service.CustomerService used over HTTP.
type CustomerAPI interface {
	Create(ctx context.Context, c model.Customer) (model.Customer, error)
	List(ctx context.Context, q model.CustomerQuery) (model.Page[model.Customer], error)
	Search(ctx context.Context, term string, limit int) ([]model.Customer, error)
	GetWithOrders(ctx context.Context, id uint64) (model.CustomerWithOrders, error)
	Update(ctx context.Context, id uint64, p model.CustomerPatch) (model.Customer, error)
	Delete(ctx context.Context, id uint64) error
}

// Merger folds a guest customer into the user holding a phone.
type Merger interface {
	MergeCustomerToUser(ctx context.Context, customerID uint64, phone string, confirm bool) (model.MergeResult, error)
}

type CustomerHandler struct {
	base
	customers CustomerAPI
	merge     Merger
}

func NewCustomerHandler(customers CustomerAPI, merge Merger, timeout time.Duration, log zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{base: newBase(timeout, log), customers: customers, merge: merge}
}

type customerReq struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	Image       *string `json:"image" validate:"omitempty,max=500"`
}

type mergeReq struct {
	Phone        string `json:"phone" validate:"required,max=20"`
	ConfirmMerge bool   `json:"confirm_merge"`
}

func (h *CustomerHandler) Create(c echo.Context) error {
	var req customerReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	in := model.Customer{PhoneNumber: req.PhoneNumber, Image: req.Image}
	if req.Name != nil {
		in.Name = *req.Name
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.customers.Create(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// List pages customers; ?search= matches name or phone.
func (h *CustomerHandler) List(c echo.Context) error {
	q := model.CustomerQuery{
		Search: c.QueryParam("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.customers.List(ctx, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CustomerHandler) Search(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.customers.Search(ctx, c.QueryParam("q"), queryInt(c, "limit", 10))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns the customer with its orders and total spent.
func (h *CustomerHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.customers.GetWithOrders(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CustomerHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req customerReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.customers.Update(ctx, id, model.CustomerPatch{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Image:       req.Image,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CustomerHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.customers.Delete(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MergeToUser links the customer to a phone.  Without confirm_merge a match
// with a registered user is only reported.
func (h *CustomerHandler) MergeToUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req mergeReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.merge.MergeCustomerToUser(ctx, id, req.Phone, req.ConfirmMerge)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
