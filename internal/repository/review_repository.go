package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// reviewSortColumns whitelists sortable columns.
var reviewSortColumns = map[string]string{
	"createdAt": "r.created_at",
	"updatedAt": "r.updated_at",
	"rating":    "r.rating",
}

// ReviewSortColumn resolves an API sort field name.
func ReviewSortColumn(field string) (string, bool) {
	c, ok := reviewSortColumns[field]
	return c, ok
}

const reviewSelect = "SELECT r.id, r.owner_kind, r.owner_id, COALESCE(u.full_name, c.name), r.comment, r.rating, r.images, " +
	"r.created_by, r.updated_by, r.created_at, r.updated_at, r.deleted_at FROM reviews r " +
	"LEFT JOIN users u ON r.owner_kind = 'USER' AND u.id = r.owner_id " +
	"LEFT JOIN customers c ON r.owner_kind = 'CUSTOMER' AND c.id = r.owner_id"

func scanReview(row interface{ Scan(...any) error }) (model.Review, error) {
	var (
		rv                   model.Review
		kind                 sql.NullString
		ownerID              sql.NullInt64
		author               sql.NullString
		images               []byte
		createdBy, updatedBy sql.NullInt64
		deletedAt            sql.NullTime
	)
	err := row.Scan(&rv.ID, &kind, &ownerID, &author, &rv.Comment, &rv.Rating, &images,
		&createdBy, &updatedBy, &rv.CreatedAt, &rv.UpdatedAt, &deletedAt)
	if err != nil {
		return rv, err
	}
	rv.Author = model.OwnerFromNull(kind, ownerID)
	rv.AuthorName = strPtr(author)
	rv.CreatedBy = uintPtr(createdBy)
	rv.UpdatedBy = uintPtr(updatedBy)
	rv.DeletedAt = timePtr(deletedAt)
	rv.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &rv.Images); err != nil {
			return rv, fmt.Errorf("review %d images: %w", rv.ID, err)
		}
	}
	return rv, nil
}

func encodeImages(images []string) (any, error) {
	if images == nil {
		return nil, nil
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	images, err := encodeImages(rv.Images)
	if err != nil {
		return err
	}
	kind, ownerID := rv.Author.Args()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO reviews (owner_kind, owner_id, comment, rating, images, created_by, updated_by) VALUES (?,?,?,?,?,?,?)",
		kind, ownerID, rv.Comment, rv.Rating, images, rv.CreatedBy, rv.UpdatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// GetByID fetches one review; soft-deleted rows only when includeDeleted.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64, includeDeleted bool) (model.Review, error) {
	q := reviewSelect + " WHERE r.id = ?"
	if !includeDeleted {
		q += " AND r.deleted_at IS NULL"
	}
	rv, err := scanReview(r.db.QueryRowContext(ctx, q, id))
	return rv, notFound(err)
}

// List pages through reviews.  q.Sort must already be validated.
func (r *ReviewRepo) List(ctx context.Context, q model.ReviewQuery) (model.Page[model.Review], error) {
	page, limit, offset := pageBounds(q.Page, q.Limit, 20)
	out := model.Page[model.Review]{Data: []model.Review{}, Page: page, Limit: limit}

	conds := []string{"1=1"}
	var args []any
	if !q.IncludeDeleted {
		conds = append(conds, "r.deleted_at IS NULL")
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		conds = append(conds, "(LOWER(r.comment) LIKE ? OR LOWER(u.full_name) LIKE ? OR LOWER(c.name) LIKE ?)")
		args = append(args, like, like, like)
	}
	if !q.Author.IsZero() {
		kind, id := q.Author.Args()
		conds = append(conds, "r.owner_kind = ? AND r.owner_id = ?")
		args = append(args, kind, id)
	}
	if q.Rating != nil {
		conds = append(conds, "r.rating = ?")
		args = append(args, *q.Rating)
	}
	if q.MinRating != nil {
		conds = append(conds, "r.rating >= ?")
		args = append(args, *q.MinRating)
	}
	if q.MaxRating != nil {
		conds = append(conds, "r.rating <= ?")
		args = append(args, *q.MaxRating)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	countQ := "SELECT COUNT(*) FROM reviews r " +
		"LEFT JOIN users u ON r.owner_kind = 'USER' AND u.id = r.owner_id " +
		"LEFT JOIN customers c ON r.owner_kind = 'CUSTOMER' AND c.id = r.owner_id" + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&out.Total); err != nil {
		return out, err
	}

	order := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		order = append(order, s.Column+" "+dir)
	}
	if len(order) == 0 {
		order = append(order, "r.created_at DESC")
	}
	order = append(order, "r.id DESC")

	rows, err := r.db.QueryContext(ctx,
		reviewSelect+where+" ORDER BY "+strings.Join(order, ", ")+" LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return out, err
		}
		out.Data = append(out.Data, rv)
	}
	return out, rows.Err()
}

// Update writes the full editable state of rv.
func (r *ReviewRepo) Update(ctx context.Context, rv *model.Review) error {
	images, err := encodeImages(rv.Images)
	if err != nil {
		return err
	}
	kind, ownerID := rv.Author.Args()
	return execAffectingOne(ctx, r.db,
		"UPDATE reviews SET owner_kind = ?, owner_id = ?, comment = ?, rating = ?, images = ?, updated_by = ? WHERE id = ? AND deleted_at IS NULL",
		kind, ownerID, rv.Comment, rv.Rating, images, rv.UpdatedBy, rv.ID)
}

func (r *ReviewRepo) SoftDelete(ctx context.Context, id, adminID uint64) error {
	return execAffectingOne(ctx, r.db,
		"UPDATE reviews SET deleted_at = UTC_TIMESTAMP(3), updated_by = ? WHERE id = ? AND deleted_at IS NULL",
		adminID, id)
}
