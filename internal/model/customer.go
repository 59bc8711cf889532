package model

import "time"

// Customer is a guest identity created at the till.  A customer may later be
// merged into a User, after which it is soft-deleted and its phone cleared.
type Customer struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	PhoneNumber  *string    `json:"phone_number"`
	Image        *string    `json:"image"`
	RewardPoints int64      `json:"reward_points"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CustomerPatch holds optional changes.  A non-nil empty Phone clears it.
type CustomerPatch struct {
	Name        *string
	PhoneNumber *string
	Image       *string
}

// CustomerQuery pages through customers, optionally matching name or phone.
type CustomerQuery struct {
	Search string
	Page   int
	Limit  int
}

// CustomerWithOrders is the customer detail view.
type CustomerWithOrders struct {
	Customer
	Orders      []OrderSummary `json:"orders"`
	TotalSpent  string         `json:"total_spent"`
	OrdersCount int            `json:"orders_count"`
}

// MergeResult reports what a customer to user merge did.
type MergeResult struct {
	Merged            bool    `json:"merged"`
	CustomerID        uint64  `json:"customer_id,omitempty"`
	UserID            *uint64 `json:"user_id,omitempty"`
	OrdersMoved       int64   `json:"orders_moved"`
	TransactionsMoved int64   `json:"transactions_moved"`
	ReviewsMoved      int64   `json:"reviews_moved"`
	PointsMoved       int64   `json:"points_moved"`
}
