package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func scanCategory(row interface{ Scan(...any) error }) (model.Category, error) {
	var (
		c    model.Category
		desc sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt)
	c.Description = strPtr(desc)
	return c, err
}

func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, description) VALUES (?, ?)", c.Name, nullString(c.Description))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (model.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM categories WHERE id = ? AND deleted_at IS NULL", id))
	return c, notFound(err)
}

func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM categories WHERE deleted_at IS NULL ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) Update(ctx context.Context, id uint64, p model.CategoryPatch) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	args = append(args, id)
	return execAffectingOne(ctx, r.db,
		"UPDATE categories SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
}

func (r *CategoryRepo) SoftDelete(ctx context.Context, id uint64) error {
	return execAffectingOne(ctx, r.db,
		"UPDATE categories SET deleted_at = UTC_TIMESTAMP(3) WHERE id = ? AND deleted_at IS NULL", id)
}

// execAffectingOne runs an UPDATE/DELETE and maps "no row matched" to
// ErrNotFound.  The DSN sets clientFoundRows, so an update that leaves the
// values unchanged still counts its matched row.
func execAffectingOne(ctx context.Context, q querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
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
