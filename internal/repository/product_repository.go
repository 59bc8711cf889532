package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = "id, name, description, price, image, category_id, status, sales_count, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var (
		p           model.Product
		desc, image sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &desc, &p.Price, &image, &p.CategoryID, &p.Status, &p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	p.Description = strPtr(desc)
	p.Image = strPtr(image)
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (name, description, price, image, category_id, status) VALUES (?,?,?,?,?,?)",
		p.Name, nullString(p.Description), p.Price, nullString(p.Image), p.CategoryID, string(p.Status))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID fetches a live product.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ? AND deleted_at IS NULL", id))
	return p, notFound(err)
}

// MissingIDs returns the ids from ids that do not name a live product.
func (r *ProductRepo) MissingIDs(ctx context.Context, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM products WHERE deleted_at IS NULL AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[uint64]bool, len(ids))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []uint64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *ProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	q := "SELECT " + productColumns + " FROM products WHERE deleted_at IS NULL"
	var args []any
	if f.CategoryID != 0 {
		q += " AND category_id = ?"
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY name, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Update(ctx context.Context, id uint64, p model.ProductPatch) error {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Image != nil {
		add("image", *p.Image)
	}
	if p.CategoryID != nil {
		add("category_id", *p.CategoryID)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	args = append(args, id)
	err := execAffectingOne(ctx, r.db,
		"UPDATE products SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *ProductRepo) SoftDelete(ctx context.Context, id uint64) error {
	return execAffectingOne(ctx, r.db,
		"UPDATE products SET deleted_at = UTC_TIMESTAMP(3) WHERE id = ? AND deleted_at IS NULL", id)
}

// HardDelete removes the row.  Products referenced by order lines cannot be
// removed and yield ErrConflict.
func (r *ProductRepo) HardDelete(ctx context.Context, id uint64) error {
	err := execAffectingOne(ctx, r.db, "DELETE FROM products WHERE id = ?", id)
	if isForeignKeyViolation(err) {
		return ErrConflict
	}
	return err
}

// incrementSalesTx adds qty to the product's sales counter inside tx.
// Soft-deleted products still count: the sale happened.
func incrementSalesTx(ctx context.Context, tx *sql.Tx, productID uint64, qty int) error {
	_, err := tx.ExecContext(ctx, "UPDATE products SET sales_count = sales_count + ? WHERE id = ?", qty, productID)
	return err
}

// CountByImage counts live products whose image is url.
func (r *ProductRepo) CountByImage(ctx context.Context, url string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE image = ? AND deleted_at IS NULL", url).Scan(&n)
	return n, err
}
