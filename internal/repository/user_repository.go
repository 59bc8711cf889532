package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, password_hash, full_name, phone, role, reward_points, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u     model.User
		phone sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &phone, &u.Role, &u.RewardPoints, &u.CreatedAt, &u.UpdatedAt)
	u.Phone = strPtr(phone)
	return u, err
}

// Create inserts u and fills in its ID.  When u.Phone belongs to a live guest
// customer, the customer's orders, points, ledger and reviews are moved onto
// the new user in the same transaction and the returned MergeResult reports
// it.  A phone held by another user fails with *PhoneTakenError.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (model.MergeResult, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var merged model.MergeResult
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var claim uint64
		if u.Phone != nil {
			holder, err := lookupPhoneOwnerTx(ctx, tx, *u.Phone)
			if err != nil {
				return err
			}
			switch holder.Kind {
			case model.OwnerUser:
				return &PhoneTakenError{Phone: *u.Phone, Owner: holder}
			case model.OwnerCustomer:
				claim = holder.ID
			}
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (email, password_hash, full_name, phone, role) VALUES (?,?,?,?,?)",
			u.Email, u.PasswordHash, u.FullName, nullString(u.Phone), u.Role)
		if err != nil {
			if isDuplicateOn(err, "uq_users_phone") {
				return &PhoneTakenError{Phone: *u.Phone}
			}
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID = uint64(id)
		if claim != 0 {
			if merged, err = transferCustomerTx(ctx, tx, claim, u.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.MergeResult{}, err
	}
	return merged, nil
}

// GetByEmail fetches a live user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND deleted_at IS NULL LIMIT 1", email))
	return u, notFound(err)
}

// GetByID fetches a live user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? AND deleted_at IS NULL LIMIT 1", id))
	return u, notFound(err)
}

// GetByPhone fetches the live user holding phone.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone = ? AND deleted_at IS NULL LIMIT 1", phone))
	return u, notFound(err)
}

// Update applies a profile patch.  A phone change is checked against both
// identity tables while the candidate rows are locked.  An empty phone clears it.
func (r *UserRepo) Update(ctx context.Context, id uint64, p model.UserPatch) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := lockOwnerTx(ctx, tx, model.UserOwner(id)); err != nil {
			return err
		}
		sets := make([]string, 0, 3)
		args := make([]any, 0, 4)
		phone := ""
		if p.FullName != nil {
			sets = append(sets, "full_name = ?")
			args = append(args, *p.FullName)
		}
		if p.Phone != nil {
			phone = strings.TrimSpace(*p.Phone)
			if phone == "" {
				sets = append(sets, "phone = NULL")
			} else {
				if err := ensurePhoneFreeTx(ctx, tx, phone, model.UserOwner(id)); err != nil {
					return err
				}
				sets = append(sets, "phone = ?")
				args = append(args, phone)
			}
		}
		if p.PasswordHash != nil {
			sets = append(sets, "password_hash = ?")
			args = append(args, *p.PasswordHash)
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, id)
		_, err := tx.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if isDuplicateKey(err) {
			return &PhoneTakenError{Phone: phone}
		}
		return err
	})
}
