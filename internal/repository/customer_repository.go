package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// CustomerRepo stores guest identities.  Default reads skip soft-deleted rows.
type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = "id, name, phone_number, image, reward_points, created_at, updated_at, deleted_at"

func scanCustomer(row interface{ Scan(...any) error }) (model.Customer, error) {
	var (
		c            model.Customer
		phone, image sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &phone, &image, &c.RewardPoints, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	c.PhoneNumber = strPtr(phone)
	c.Image = strPtr(image)
	c.DeletedAt = timePtr(deletedAt)
	return c, err
}

// Create inserts c.  A phone already held by a user or another customer
// fails with *PhoneTakenError and nothing is written.
func (r *CustomerRepo) Create(ctx context.Context, c *model.Customer) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if c.PhoneNumber != nil {
			if err := ensurePhoneFreeTx(ctx, tx, *c.PhoneNumber, model.OwnerRef{}); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO customers (name, phone_number, image) VALUES (?,?,?)",
			c.Name, nullString(c.PhoneNumber), nullString(c.Image))
		if err != nil {
			if isDuplicateKey(err) && c.PhoneNumber != nil {
				return &PhoneTakenError{Phone: *c.PhoneNumber}
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = uint64(id)
		return nil
	})
}

// CreateAnonymous returns the live phone-less customer called name
// (case-insensitive), creating it when none exists.
func (r *CustomerRepo) CreateAnonymous(ctx context.Context, name string) (model.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE LOWER(name) = LOWER(?) AND phone_number IS NULL AND deleted_at IS NULL ORDER BY id LIMIT 1",
		name))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	c = model.Customer{Name: name}
	if err := r.Create(ctx, &c); err != nil {
		return c, err
	}
	return r.GetByID(ctx, c.ID)
}

// GetByID fetches a live customer.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (model.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ? AND deleted_at IS NULL", id))
	return c, notFound(err)
}

// List returns one page of live customers, newest first.  search matches the
// name or the phone number.
func (r *CustomerRepo) List(ctx context.Context, q model.CustomerQuery) (model.Page[model.Customer], error) {
	page, limit, offset := pageBounds(q.Page, q.Limit, 20)
	out := model.Page[model.Customer]{Data: []model.Customer{}, Page: page, Limit: limit}

	where := " WHERE deleted_at IS NULL"
	var args []any
	if s := strings.TrimSpace(q.Search); s != "" {
		where += " AND (name LIKE ? OR phone_number LIKE ?)"
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers"+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+customerColumns+" FROM customers"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return out, err
		}
		out.Data = append(out.Data, c)
	}
	return out, rows.Err()
}

// Search is the quick lookup used at the till: name or phone, at most limit rows.
func (r *CustomerRepo) Search(ctx context.Context, term string, limit int) ([]model.Customer, error) {
	if limit < 1 || limit > 20 {
		limit = 20
	}
	like := "%" + strings.TrimSpace(term) + "%"
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE deleted_at IS NULL AND (name LIKE ? OR phone_number LIKE ?) ORDER BY name LIMIT ?",
		like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies p.  A phone change is checked against both identity tables
// excluding the customer itself; an empty phone clears it.
func (r *CustomerRepo) Update(ctx context.Context, id uint64, p model.CustomerPatch) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		self := model.CustomerOwner(id)
		if _, err := lockOwnerTx(ctx, tx, self); err != nil {
			return err
		}
		sets := make([]string, 0, 3)
		args := make([]any, 0, 4)
		phone := ""
		if p.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *p.Name)
		}
		if p.PhoneNumber != nil {
			phone = strings.TrimSpace(*p.PhoneNumber)
			if phone == "" {
				sets = append(sets, "phone_number = NULL")
			} else {
				if err := ensurePhoneFreeTx(ctx, tx, phone, self); err != nil {
					return err
				}
				sets = append(sets, "phone_number = ?")
				args = append(args, phone)
			}
		}
		if p.Image != nil {
			sets = append(sets, "image = ?")
			args = append(args, *p.Image)
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, id)
		_, err := tx.ExecContext(ctx, "UPDATE customers SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if isDuplicateKey(err) {
			return &PhoneTakenError{Phone: phone}
		}
		return err
	})
}

// SoftDelete marks the customer deleted and releases its phone number.
func (r *CustomerRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE customers SET deleted_at = UTC_TIMESTAMP(3), phone_number = NULL WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
