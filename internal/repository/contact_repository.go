package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// ContactRepo stores contact form messages.  Rows are never deleted.
type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = "id, name, email, phone, message, status, user_id, created_at, updated_at"

func scanContact(row interface{ Scan(...any) error }) (model.ContactMessage, error) {
	var (
		m     model.ContactMessage
		phone sql.NullString
		uid   sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.Name, &m.Email, &phone, &m.Message, &m.Status, &uid, &m.CreatedAt, &m.UpdatedAt)
	m.Phone = strPtr(phone)
	m.UserID = uintPtr(uid)
	return m, err
}

func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage) error {
	if m.Status == "" {
		m.Status = model.ContactNew
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO contact_messages (name, email, phone, message, status, user_id) VALUES (?,?,?,?,?,?)",
		m.Name, m.Email, nullString(m.Phone), m.Message, m.Status, m.UserID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

func (r *ContactRepo) GetByID(ctx context.Context, id uint64) (model.ContactMessage, error) {
	m, err := scanContact(r.db.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contact_messages WHERE id = ?", id))
	return m, notFound(err)
}

// List returns one page of messages, newest first.  Search matches name,
// email or message text.
func (r *ContactRepo) List(ctx context.Context, f model.ContactFilter) (model.Page[model.ContactMessage], error) {
	page, limit, offset := pageBounds(f.Page, f.Limit, 20)
	out := model.Page[model.ContactMessage]{Data: []model.ContactMessage{}, Page: page, Limit: limit}

	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(name LIKE ? OR email LIKE ? OR message LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_messages"+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contact_messages"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return out, err
		}
		out.Data = append(out.Data, m)
	}
	return out, rows.Err()
}

func (r *ContactRepo) SetStatus(ctx context.Context, id uint64, status model.ContactStatus) error {
	return execAffectingOne(ctx, r.db, "UPDATE contact_messages SET status = ? WHERE id = ?", status, id)
}
