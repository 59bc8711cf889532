// Package queue carries domain events over RabbitMQ: the publisher used by
// the services and the background consumer that keeps an audit trail.
package queue

import (
	"encoding/json"
	"time"
)

// Routing keys published on the events exchange.
const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	RewardCreditFailed = "reward.credit_failed"
	CustomerMerged     = "customer.merged"
)

// Envelope wraps every message so consumers can dispatch on Type without
// knowing the payload shape up front.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderCreatedEvent is published after an order and its lines are stored.
type OrderCreatedEvent struct {
	OrderID      uint64  `json:"order_id"`
	CustomerName string  `json:"customer_name"`
	UserID       *uint64 `json:"user_id,omitempty"`
	CustomerID   *uint64 `json:"customer_id,omitempty"`
	Lines        int     `json:"lines"`
	Total        string  `json:"total"`
}

// OrderPaidEvent is published when an order enters PAID.  PointsAwarded is
// zero when nothing was credited (anonymous order, small total, or failure).
type OrderPaidEvent struct {
	OrderID       uint64  `json:"order_id"`
	UserID        *uint64 `json:"user_id,omitempty"`
	CustomerID    *uint64 `json:"customer_id,omitempty"`
	PaymentMethod string  `json:"payment_method"`
	Total         string  `json:"total"`
	PointsAwarded int64   `json:"points_awarded"`
}

// RewardCreditFailedEvent flags a PAID order whose points still need to be
// settled by an operator.
type RewardCreditFailedEvent struct {
	OrderID uint64 `json:"order_id"`
	Owner   string `json:"owner"`
	Points  int64  `json:"points"`
	Error   string `json:"error"`
}

// CustomerMergedEvent is published after a guest customer was folded into a user.
type CustomerMergedEvent struct {
	CustomerID        uint64 `json:"customer_id"`
	UserID            uint64 `json:"user_id"`
	OrdersMoved       int64  `json:"orders_moved"`
	TransactionsMoved int64  `json:"transactions_moved"`
	PointsMoved       int64  `json:"points_moved"`
	Source            string `json:"source"` // "merge" or "register"
}
