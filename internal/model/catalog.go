package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

// ProductStatus controls whether a product is offered at the till.
type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

func (s ProductStatus) Valid() bool { return s == ProductActive || s == ProductInactive }

// Product is a sellable item.  SalesCount only ever grows and only when an
// order containing the product becomes PAID.
type Product struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       *string         `json:"image"`
	CategoryID  uint64          `json:"category_id"`
	Status      ProductStatus   `json:"status"`
	SalesCount  int64           `json:"sales_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"-"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID uint64
	Status     ProductStatus
}

type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Image       *string
	CategoryID  *uint64
	Status      *ProductStatus
}

type CategoryPatch struct {
	Name        *string
	Description *string
}
