package model

import "github.com/shopspring/decimal"

// PaymentBreakdown splits revenue by payment method.
type PaymentBreakdown struct {
	Cash         decimal.Decimal `json:"cash"`
	BankTransfer decimal.Decimal `json:"bank_transfer"`
}

// RevenueReport summarises paid orders for one day.
type RevenueReport struct {
	Date                   string           `json:"date"`
	TotalOrders            int              `json:"total_orders"`
	TotalRevenue           decimal.Decimal  `json:"total_revenue"`
	PaymentMethodBreakdown PaymentBreakdown `json:"payment_method_breakdown"`
}

// DailyTotal is one point of a sales series.
type DailyTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// TopProduct ranks products by paid quantity.
type TopProduct struct {
	ProductID   uint64          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	TotalOrders     int64           `json:"total_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	PaidOrders      int64           `json:"paid_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TodayRevenue    decimal.Decimal `json:"today_revenue"`
	TopProducts     []TopProduct    `json:"top_products"`
}
