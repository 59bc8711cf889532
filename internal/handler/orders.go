package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/service"
)

// OrderAPI is the part of service.OrderService used over HTTP.
type OrderAPI interface {
	Create(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	List(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	Get(ctx context.Context, id uint64) (*model.Order, error)
	Update(ctx context.Context, id uint64, p model.OrderPatch) (*model.Order, error)
	SettlePoints(ctx context.Context, id uint64) (*model.Order, error)
	Remove(ctx context.Context, id uint64) error
}

type OrderHandler struct {
	base
	orders OrderAPI
}

func NewOrderHandler(orders OrderAPI, timeout time.Duration, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{base: newBase(timeout, log), orders: orders}
}

type orderLineReq struct {
	ProductID uint64          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderReq struct {
	CustomerName  string         `json:"customer_name" validate:"max=255"`
	UserID        *uint64        `json:"user_id"`
	CustomerID    *uint64        `json:"customer_id"`
	PaymentMethod *string        `json:"payment_method"`
	Items         []orderLineReq `json:"items" validate:"required,min=1,dive"`
}

type updateOrderReq struct {
	Status             *string `json:"status"`
	PaymentMethod      *string `json:"payment_method"`
	CancellationReason *string `json:"cancellation_reason"`
}

func methodPtr(v *string) *model.PaymentMethod {
	if v == nil {
		return nil
	}
	m := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(*v)))
	return &m
}

func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	in := service.CreateOrderInput{
		CustomerName:  req.CustomerName,
		UserID:        req.UserID,
		CustomerID:    req.CustomerID,
		PaymentMethod: methodPtr(req.PaymentMethod),
		Items:         make([]service.OrderLineInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.OrderLineInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.Create(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// List accepts ?customer_name=, ?user_id= and ?status=.
func (h *OrderHandler) List(c echo.Context) error {
	f := model.OrderFilter{
		CustomerName: strings.TrimSpace(c.QueryParam("customer_name")),
		Status:       model.OrderStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
	}
	if id := queryUint(c, "user_id"); id != nil {
		f.UserID = *id
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.orders.List(ctx, f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

// Update changes status, payment method or cancellation reason.  A points
// credit failure after PAID still answers 200 with points_error set.
func (h *OrderHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req updateOrderReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	p := model.OrderPatch{
		PaymentMethod:      methodPtr(req.PaymentMethod),
		CancellationReason: req.CancellationReason,
	}
	if req.Status != nil {
		st := model.OrderStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		p.Status = &st
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.Update(ctx, id, p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) SettlePoints(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.SettlePoints(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.orders.Remove(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
