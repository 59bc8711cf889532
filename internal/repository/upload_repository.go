package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

type UploadRepo struct {
	db *sql.DB
}

func NewUploadRepo(db *sql.DB) *UploadRepo { return &UploadRepo{db: db} }

const uploadColumns = "id, original_name, stored_name, mime_type, size_bytes, url, uploaded_by, created_at"

func scanUpload(row interface{ Scan(...any) error }) (model.FileUpload, error) {
	var (
		f  model.FileUpload
		by sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.OriginalName, &f.StoredName, &f.MimeType, &f.SizeBytes, &f.URL, &by, &f.CreatedAt)
	f.UploadedBy = uintPtr(by)
	return f, err
}

func (r *UploadRepo) Create(ctx context.Context, f *model.FileUpload) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO file_uploads (original_name, stored_name, mime_type, size_bytes, url, uploaded_by) VALUES (?,?,?,?,?,?)",
		f.OriginalName, f.StoredName, f.MimeType, f.SizeBytes, f.URL, f.UploadedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return nil
}

func (r *UploadRepo) GetByID(ctx context.Context, id uint64) (model.FileUpload, error) {
	f, err := scanUpload(r.db.QueryRowContext(ctx,
		"SELECT "+uploadColumns+" FROM file_uploads WHERE id = ? AND deleted_at IS NULL", id))
	return f, notFound(err)
}

func (r *UploadRepo) List(ctx context.Context, page, limit int) (model.Page[model.FileUpload], error) {
	page, limit, offset := pageBounds(page, limit, 20)
	out := model.Page[model.FileUpload]{Data: []model.FileUpload{}, Page: page, Limit: limit}
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM file_uploads WHERE deleted_at IS NULL").Scan(&out.Total); err != nil {
		return out, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+uploadColumns+" FROM file_uploads WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanUpload(rows)
		if err != nil {
			return out, err
		}
		out.Data = append(out.Data, f)
	}
	return out, rows.Err()
}

func (r *UploadRepo) SoftDelete(ctx context.Context, id uint64) error {
	return execAffectingOne(ctx, r.db,
		"UPDATE file_uploads SET deleted_at = UTC_TIMESTAMP(3) WHERE id = ? AND deleted_at IS NULL", id)
}
