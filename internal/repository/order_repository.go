package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// OrderRepo owns the orders and order_details tables.  Creation and status
// changes are atomic units: each runs in a single transaction here so the
// service layer never holds a *sql.Tx.
type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = "o.id, o.customer_name, o.owner_kind, o.owner_id, o.payment_method, o.status, " +
	"o.cancellation_reason, o.points_awarded, o.points_settled_at, o.created_at, o.updated_at"

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o                 model.Order
		ownerKind, method sql.NullString
		ownerID           sql.NullInt64
		reason            sql.NullString
		settledAt         sql.NullTime
	)
	err := row.Scan(&o.ID, &o.CustomerName, &ownerKind, &ownerID, &method, &o.Status,
		&reason, &o.PointsAwarded, &settledAt, &o.CreatedAt, &o.UpdatedAt)
	o.Owner = model.OwnerFromNull(ownerKind, ownerID)
	if method.Valid {
		pm := model.PaymentMethod(method.String)
		o.PaymentMethod = &pm
	}
	o.CancellationReason = strPtr(reason)
	o.PointsSettledAt = timePtr(settledAt)
	return o, err
}

// Create inserts the order and all of its lines in one transaction.  When the
// order has an owner, the owner row is share-locked and must still be live;
// otherwise ErrNotFound is returned and nothing is written.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order, lines []model.NewOrderLine) error {
	if o.Status == "" {
		o.Status = model.OrderPendingPayment
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if !o.Owner.IsZero() {
			if err := shareOwnerTx(ctx, tx, o.Owner); err != nil {
				return err
			}
		}
		kind, ownerID := o.Owner.Args()
		var method any
		if o.PaymentMethod != nil {
			method = string(*o.PaymentMethod)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO orders (customer_name, owner_kind, owner_id, payment_method, status) VALUES (?,?,?,?,?)",
			o.CustomerName, kind, ownerID, method, string(o.Status))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		o.ID = uint64(id)
		return createDetailsBulkTx(ctx, tx, o.ID, lines)
	})
}

// createDetailsBulkTx inserts all order lines in a single statement.
// subtotal is computed here, once, from the captured unit price.
func createDetailsBulkTx(ctx context.Context, tx *sql.Tx, orderID uint64, lines []model.NewOrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO order_details (order_id, product_id, quantity, unit_price, subtotal) VALUES ")
	args := make([]any, 0, len(lines)*5)
	for i, l := range lines {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, orderID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal())
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetByID returns the order with its lines and the joined product snapshot.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	orders := []model.Order{o}
	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns orders newest first.  CustomerName is a substring match.
func (r *OrderRepo) List(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	q := "SELECT " + orderColumns + " FROM orders o WHERE 1=1"
	var args []any
	if name := strings.TrimSpace(f.CustomerName); name != "" {
		q += " AND o.customer_name LIKE ?"
		args = append(args, "%"+name+"%")
	}
	if f.UserID != 0 {
		q += " AND o.owner_kind = 'USER' AND o.owner_id = ?"
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		q += " AND o.status = ?"
		args = append(args, string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY o.created_at DESC, o.id DESC", args...)
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachDetails loads the lines of every order in one query.
func (r *OrderRepo) attachDetails(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(orders))
	args := make([]any, len(orders))
	for i := range orders {
		idx[orders[i].ID] = i
		args[i] = orders[i].ID
		orders[i].Details = []model.OrderDetail{}
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT d.id, d.order_id, d.product_id, d.quantity, d.unit_price, d.subtotal, p.name, p.image "+
			"FROM order_details d LEFT JOIN products p ON p.id = d.product_id "+
			"WHERE d.order_id IN ("+placeholders(len(orders))+") ORDER BY d.id", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d     model.OrderDetail
			name  sql.NullString
			image sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.Subtotal, &name, &image); err != nil {
			return err
		}
		if name.Valid {
			d.Product = &model.ProductSnapshot{ID: d.ProductID, Name: name.String, Image: strPtr(image)}
		}
		if i, ok := idx[d.OrderID]; ok {
			orders[i].Details = append(orders[i].Details, d)
		}
	}
	return rows.Err()
}

// ApplyPatch updates status/payment method/cancellation reason under a row
// lock.  When the order moves into PAID from any other status, every line's
// quantity is added to its product's sales counter in the same transaction.
// Concurrent PAID requests serialize on the lock; only the first one sees a
// non-PAID previous status.
func (r *OrderRepo) ApplyPatch(ctx context.Context, id uint64, p model.OrderPatch) (model.StatusTransition, error) {
	var tr model.StatusTransition
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			"SELECT status FROM orders WHERE id = ? FOR UPDATE", id).Scan(&tr.Previous); err != nil {
			return notFound(err)
		}
		tr.Current = tr.Previous
		sets := make([]string, 0, 3)
		args := make([]any, 0, 4)
		if p.Status != nil {
			tr.Current = *p.Status
			sets = append(sets, "status = ?")
			args = append(args, string(*p.Status))
		}
		if p.PaymentMethod != nil {
			sets = append(sets, "payment_method = ?")
			args = append(args, string(*p.PaymentMethod))
		}
		if p.CancellationReason != nil {
			sets = append(sets, "cancellation_reason = ?")
			args = append(args, *p.CancellationReason)
		}
		if len(sets) > 0 {
			args = append(args, id)
			if _, err := tx.ExecContext(ctx,
				"UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
				return err
			}
		}
		if !tr.BecamePaid() {
			return nil
		}
		rows, err := tx.QueryContext(ctx, "SELECT product_id, quantity FROM order_details WHERE order_id = ?", id)
		if err != nil {
			return err
		}
		type line struct {
			productID uint64
			qty       int
		}
		var lines []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.productID, &l.qty); err != nil {
				rows.Close()
				return err
			}
			lines = append(lines, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, l := range lines {
			if err := incrementSalesTx(ctx, tx, l.productID, l.qty); err != nil {
				return err
			}
		}
		return nil
	})
	return tr, err
}

// Delete removes the order; its lines go with it through ON DELETE CASCADE.
func (r *OrderRepo) Delete(ctx context.Context, id uint64) error {
	return execAffectingOne(ctx, r.db, "DELETE FROM orders WHERE id = ?", id)
}

// SummariesByOwner lists an identity's orders with their totals, newest first.
func (r *OrderRepo) SummariesByOwner(ctx context.Context, owner model.OwnerRef) ([]model.OrderSummary, error) {
	kind, id := owner.Args()
	rows, err := r.db.QueryContext(ctx,
		"SELECT o.id, o.status, o.payment_method, COALESCE(SUM(d.subtotal), 0), o.points_awarded, o.created_at "+
			"FROM orders o LEFT JOIN order_details d ON d.order_id = o.id "+
			"WHERE o.owner_kind = ? AND o.owner_id = ? "+
			"GROUP BY o.id, o.status, o.payment_method, o.points_awarded, o.created_at "+
			"ORDER BY o.created_at DESC, o.id DESC", kind, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderSummary{}
	for rows.Next() {
		var (
			s      model.OrderSummary
			method sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Status, &method, &s.Total, &s.PointsAwarded, &s.CreatedAt); err != nil {
			return nil, err
		}
		if method.Valid {
			pm := model.PaymentMethod(method.String)
			s.PaymentMethod = &pm
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

