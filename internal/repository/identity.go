package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// ownerTable maps an owner kind onto its identity table.
func ownerTable(kind model.OwnerKind) (string, error) {
	switch kind {
	case model.OwnerUser:
		return "users", nil
	case model.OwnerCustomer:
		return "customers", nil
	}
	return "", fmt.Errorf("unknown owner kind %q", kind)
}

// lockOwnerTx locks a live identity row and returns its reward balance.
// Every ledger write goes through this lock so writes for one owner serialize.
func lockOwnerTx(ctx context.Context, tx *sql.Tx, owner model.OwnerRef) (int64, error) {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = tx.QueryRowContext(ctx,
		"SELECT reward_points FROM "+table+" WHERE id = ? AND deleted_at IS NULL FOR UPDATE",
		owner.ID).Scan(&balance)
	return balance, notFound(err)
}

// shareOwnerTx takes a shared lock on a live identity row.  Order creation
// uses it so a merge cannot soft-delete the customer mid-insert.
func shareOwnerTx(ctx context.Context, tx *sql.Tx, owner model.OwnerRef) error {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return err
	}
	var id uint64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM "+table+" WHERE id = ? AND deleted_at IS NULL FOR SHARE",
		owner.ID).Scan(&id)
	return notFound(err)
}

func setBalanceTx(ctx context.Context, tx *sql.Tx, owner model.OwnerRef, balance int64) error {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "UPDATE "+table+" SET reward_points = ? WHERE id = ?", balance, owner.ID)
	return err
}

// lookupPhoneOwnerTx finds the live identity holding phone in either table,
// locking the index entry so a concurrent insert of the same number waits.
// The zero OwnerRef means the phone is free.
func lookupPhoneOwnerTx(ctx context.Context, tx *sql.Tx, phone string) (model.OwnerRef, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE phone = ? AND deleted_at IS NULL FOR UPDATE", phone).Scan(&id)
	switch {
	case err == nil:
		return model.UserOwner(id), nil
	case !errors.Is(err, sql.ErrNoRows):
		return model.OwnerRef{}, err
	}
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM customers WHERE phone_number = ? AND deleted_at IS NULL FOR UPDATE", phone).Scan(&id)
	switch {
	case err == nil:
		return model.CustomerOwner(id), nil
	case !errors.Is(err, sql.ErrNoRows):
		return model.OwnerRef{}, err
	}
	return model.OwnerRef{}, nil
}

// ensurePhoneFreeTx fails with *PhoneTakenError when phone belongs to an
// identity other than self.
func ensurePhoneFreeTx(ctx context.Context, tx *sql.Tx, phone string, self model.OwnerRef) error {
	holder, err := lookupPhoneOwnerTx(ctx, tx, phone)
	if err != nil {
		return err
	}
	if holder.IsZero() || holder == self {
		return nil
	}
	return &PhoneTakenError{Phone: phone, Owner: holder}
}
