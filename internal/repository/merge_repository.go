package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// MergeRepo moves everything a guest customer owns onto a registered user.
type MergeRepo struct {
	db *sql.DB
}

func NewMergeRepo(db *sql.DB) *MergeRepo { return &MergeRepo{db: db} }

// TransferCustomerToUser runs the transfer in its own transaction.
func (r *MergeRepo) TransferCustomerToUser(ctx context.Context, customerID, userID uint64) (model.MergeResult, error) {
	var res model.MergeResult
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		res, err = transferCustomerTx(ctx, tx, customerID, userID)
		return err
	})
	return res, err
}

// ClaimPhone assigns phone to a live customer.  It fails with
// *PhoneTakenError when any other identity already holds the number.
func (r *MergeRepo) ClaimPhone(ctx context.Context, customerID uint64, phone string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockOwnerTx(ctx, tx, model.CustomerOwner(customerID)); err != nil {
			return err
		}
		if err := ensurePhoneFreeTx(ctx, tx, phone, model.CustomerOwner(customerID)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE customers SET phone_number = ? WHERE id = ?", phone, customerID)
		if isDuplicateKey(err) {
			return &PhoneTakenError{Phone: phone}
		}
		return err
	})
}

// transferCustomerTx is the one transfer algorithm shared by the explicit
// merge and by registration.  Lock order is customer row, then user row, then
// the order rows touched by the re-point; every other writer that touches
// both an identity and an order takes the identity first.
//
// Ledger rows move with the points, so Σ EARN − Σ REDEEM keeps matching the
// user's balance without writing a new row.
func transferCustomerTx(ctx context.Context, tx *sql.Tx, customerID, userID uint64) (model.MergeResult, error) {
	var res model.MergeResult
	points, err := lockOwnerTx(ctx, tx, model.CustomerOwner(customerID))
	if err != nil {
		return res, err
	}
	userPoints, err := lockOwnerTx(ctx, tx, model.UserOwner(userID))
	if err != nil {
		return res, err
	}

	const repoint = " SET owner_kind = 'USER', owner_id = ? WHERE owner_kind = 'CUSTOMER' AND owner_id = ?"
	moved := func(table string) (int64, error) {
		out, err := tx.ExecContext(ctx, "UPDATE "+table+repoint, userID, customerID)
		if err != nil {
			return 0, err
		}
		return out.RowsAffected()
	}
	if res.OrdersMoved, err = moved("orders"); err != nil {
		return res, err
	}
	if points > 0 {
		if err := setBalanceTx(ctx, tx, model.UserOwner(userID), userPoints+points); err != nil {
			return res, err
		}
	}
	if res.TransactionsMoved, err = moved("reward_transactions"); err != nil {
		return res, err
	}
	if res.ReviewsMoved, err = moved("reviews"); err != nil {
		return res, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE customers SET reward_points = 0, phone_number = NULL, deleted_at = UTC_TIMESTAMP(3) WHERE id = ?",
		customerID); err != nil {
		return res, err
	}
	uid := userID
	res.Merged = true
	res.CustomerID = customerID
	res.UserID = &uid
	res.PointsMoved = points
	return res, nil
}
