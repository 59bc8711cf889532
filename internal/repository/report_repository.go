package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// ReportRepo runs read-only aggregates over paid orders.  Revenue is always
// the sum of stored subtotals.  Time bounds are half-open [from, to).
type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// MethodRevenue is the paid revenue attributed to one payment method.
type MethodRevenue struct {
	Method  *model.PaymentMethod
	Orders  int
	Revenue decimal.Decimal
}

// RevenueByMethod groups paid orders created in [from, to) by payment method.
func (r *ReportRepo) RevenueByMethod(ctx context.Context, from, to time.Time) ([]MethodRevenue, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT o.payment_method, COUNT(DISTINCT o.id), COALESCE(SUM(d.subtotal), 0) "+
			"FROM orders o JOIN order_details d ON d.order_id = o.id "+
			"WHERE o.status = 'PAID' AND o.created_at >= ? AND o.created_at < ? "+
			"GROUP BY o.payment_method", from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MethodRevenue
	for rows.Next() {
		var (
			m      MethodRevenue
			method sql.NullString
		)
		if err := rows.Scan(&method, &m.Orders, &m.Revenue); err != nil {
			return nil, err
		}
		if method.Valid {
			pm := model.PaymentMethod(method.String)
			m.Method = &pm
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountOrders counts orders, optionally by status.
func (r *ReportRepo) CountOrders(ctx context.Context, status model.OrderStatus) (int64, error) {
	q := "SELECT COUNT(*) FROM orders"
	var args []any
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, string(status))
	}
	var n int64
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// SumRevenue totals paid revenue; a nil bound is open.
func (r *ReportRepo) SumRevenue(ctx context.Context, from, to *time.Time) (decimal.Decimal, error) {
	q := "SELECT COALESCE(SUM(d.subtotal), 0) FROM order_details d JOIN orders o ON o.id = d.order_id WHERE o.status = 'PAID'"
	var args []any
	if from != nil {
		q += " AND o.created_at >= ?"
		args = append(args, from.UTC())
	}
	if to != nil {
		q += " AND o.created_at < ?"
		args = append(args, to.UTC())
	}
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&sum)
	return sum, err
}

// DailyTotals returns paid revenue per UTC day (YYYY-MM-DD) in [from, to).
// Days without sales are absent.
func (r *ReportRepo) DailyTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DATE_FORMAT(o.created_at, '%Y-%m-%d') AS day, COALESCE(SUM(d.subtotal), 0) "+
			"FROM orders o JOIN order_details d ON d.order_id = o.id "+
			"WHERE o.status = 'PAID' AND o.created_at >= ? AND o.created_at < ? "+
			"GROUP BY day", from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]decimal.Decimal{}
	for rows.Next() {
		var (
			day   string
			total decimal.Decimal
		)
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		out[day] = total
	}
	return out, rows.Err()
}

// TopProducts ranks products by quantity sold in paid orders.
func (r *ReportRepo) TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT p.id, p.name, SUM(d.quantity), SUM(d.subtotal) "+
			"FROM order_details d JOIN products p ON p.id = d.product_id JOIN orders o ON o.id = d.order_id "+
			"WHERE o.status = 'PAID' GROUP BY p.id, p.name ORDER BY SUM(d.quantity) DESC, p.id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TopProduct{}
	for rows.Next() {
		var tp model.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.Quantity, &tp.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
