package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderCancelled      OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingPayment, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// PaymentMethod is how a paid order was settled.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentBankTransfer
}

// WalkInName is the display label used for orders without a named customer.
const WalkInName = "Khách vãng lai"

// IsWalkInName reports whether name denotes an anonymous walk-in.
func IsWalkInName(name string) bool {
	n := strings.TrimSpace(name)
	return n == "" || strings.EqualFold(n, WalkInName)
}

// PointsPerUnit is the amount of money that earns one reward point.
var PointsPerUnit = decimal.NewFromInt(1000)

// PointsForTotal returns floor(total / 1000).  Negative totals earn nothing.
func PointsForTotal(total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	return total.Div(PointsPerUnit).Floor().IntPart()
}

// Order is a row of the orders table with its line items.
type Order struct {
	ID                 uint64         `json:"id"`
	CustomerName       string         `json:"customer_name"`
	Owner              OwnerRef       `json:"-"`
	PaymentMethod      *PaymentMethod `json:"payment_method"`
	Status             OrderStatus    `json:"status"`
	CancellationReason *string        `json:"cancellation_reason"`
	PointsAwarded      int64          `json:"points_awarded"`
	PointsSettledAt    *time.Time     `json:"points_settled_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Details            []OrderDetail  `json:"order_details"`
}

// Total sums the stored subtotals.  Live product prices are never consulted.
func (o *Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, d := range o.Details {
		sum = sum.Add(d.Subtotal)
	}
	return sum
}

// MarshalJSON exposes the owner as user_id / customer_id and adds the total.
func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		UserID     *uint64         `json:"user_id"`
		CustomerID *uint64         `json:"customer_id"`
		Total      decimal.Decimal `json:"total"`
	}{
		alias:      alias(o),
		UserID:     o.Owner.UserID(),
		CustomerID: o.Owner.CustomerID(),
		Total:      o.Total(),
	})
}

// OrderDetail is one line of an order.  UnitPrice and Subtotal are captured
// when the order is created.
type OrderDetail struct {
	ID        uint64           `json:"id"`
	OrderID   uint64           `json:"order_id"`
	ProductID uint64           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Product   *ProductSnapshot `json:"product,omitempty"`
}

// ProductSnapshot is the product data joined onto order lines for display.
type ProductSnapshot struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// NewOrderLine is the input for one line of a new order.
type NewOrderLine struct {
	ProductID uint64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal is quantity × unit price.
func (l NewOrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderFilter narrows List.  Zero values mean "any".
type OrderFilter struct {
	CustomerName string
	UserID       uint64
	Status       OrderStatus
}

// OrderPatch carries the fields an update may change.  Nil fields are left
// untouched.
type OrderPatch struct {
	Status             *OrderStatus
	PaymentMethod      *PaymentMethod
	CancellationReason *string
}

// StatusTransition describes what an order update did to the status.
type StatusTransition struct {
	Previous OrderStatus
	Current  OrderStatus
}

// BecamePaid reports whether the update moved the order into PAID.
func (t StatusTransition) BecamePaid() bool {
	return t.Current == OrderPaid && t.Previous != OrderPaid
}

// OrderSummary is a compact order view used by customer detail pages.
type OrderSummary struct {
	ID            uint64          `json:"id"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod *PaymentMethod  `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	PointsAwarded int64           `json:"points_awarded"`
	CreatedAt     time.Time       `json:"created_at"`
}
