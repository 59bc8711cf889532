package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// creditAttempts bounds CreditOrder's retries when a merge re-points the
// order between the unlocked owner read and the locked re-check.
const creditAttempts = 3

// RewardRepo is the loyalty ledger.  Every write locks the owner row first,
// computes the new balance, updates it and appends one ledger row carrying
// that balance, all in one transaction.
type RewardRepo struct {
	db *sql.DB
}

func NewRewardRepo(db *sql.DB) *RewardRepo { return &RewardRepo{db: db} }

// Apply appends e and moves the owner's balance.  A REDEEM above the balance
// fails with ErrInsufficientPoints and leaves everything untouched.  When
// e.OrderID is set the order's settlement marker is written in the same
// transaction; an already settled order yields ErrAlreadySettled and an order
// no longer owned by e.Owner yields ErrOwnerMismatch.
func (r *RewardRepo) Apply(ctx context.Context, e model.LedgerEntry) (model.RewardTransaction, error) {
	var out model.RewardTransaction
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		out, err = applyTx(ctx, tx, e)
		return err
	})
	return out, err
}

func applyTx(ctx context.Context, tx *sql.Tx, e model.LedgerEntry) (model.RewardTransaction, error) {
	balance, err := lockOwnerTx(ctx, tx, e.Owner)
	if err != nil {
		return model.RewardTransaction{}, err
	}
	switch e.Type {
	case model.RewardEarn:
		balance += e.Points
	case model.RewardRedeem:
		if e.Points > balance {
			return model.RewardTransaction{}, ErrInsufficientPoints
		}
		balance -= e.Points
	default:
		return model.RewardTransaction{}, errors.New("unknown reward type " + string(e.Type))
	}

	if e.OrderID != nil {
		if err := settleOrderTx(ctx, tx, *e.OrderID, e.Owner, e.Points); err != nil {
			return model.RewardTransaction{}, err
		}
	}
	if err := setBalanceTx(ctx, tx, e.Owner, balance); err != nil {
		return model.RewardTransaction{}, err
	}

	kind, ownerID := e.Owner.Args()
	var orderID any
	if e.OrderID != nil {
		orderID = *e.OrderID
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reward_transactions (owner_kind, owner_id, type, points, balance_after, order_id, offer_id, description) VALUES (?,?,?,?,?,?,?,?)",
		kind, ownerID, string(e.Type), e.Points, balance, orderID, nullString(e.OfferID), e.Description)
	if err != nil {
		return model.RewardTransaction{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.RewardTransaction{}, err
	}
	return scanReward(tx.QueryRowContext(ctx, "SELECT "+rewardColumns+" FROM reward_transactions WHERE id = ?", id))
}

// settleOrderTx locks the order row after the owner row and marks it settled.
func settleOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, owner model.OwnerRef, points int64) error {
	var (
		kind    sql.NullString
		id      sql.NullInt64
		settled sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		"SELECT owner_kind, owner_id, points_settled_at FROM orders WHERE id = ? FOR UPDATE", orderID).
		Scan(&kind, &id, &settled)
	if err != nil {
		return notFound(err)
	}
	if settled.Valid {
		return ErrAlreadySettled
	}
	if model.OwnerFromNull(kind, id) != owner {
		return ErrOwnerMismatch
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET points_awarded = ?, points_settled_at = UTC_TIMESTAMP(3) WHERE id = ? AND points_settled_at IS NULL",
		points, orderID)
	return err
}

// CreditOrder credits points for a PAID order to whoever owns it at the time
// of the write.  The owner is read without a lock, then locked and re-checked
// by Apply; if a merge moved the order in between, the read is repeated.
// It returns the ledger row and the owner that received the points.
func (r *RewardRepo) CreditOrder(ctx context.Context, orderID uint64, points int64, describe func(model.OwnerRef) string) (model.RewardTransaction, error) {
	var lastErr error
	for attempt := 0; attempt < creditAttempts; attempt++ {
		var (
			kind    sql.NullString
			id      sql.NullInt64
			settled sql.NullTime
		)
		err := r.db.QueryRowContext(ctx,
			"SELECT owner_kind, owner_id, points_settled_at FROM orders WHERE id = ?", orderID).
			Scan(&kind, &id, &settled)
		if err != nil {
			return model.RewardTransaction{}, notFound(err)
		}
		if settled.Valid {
			return model.RewardTransaction{}, ErrAlreadySettled
		}
		owner := model.OwnerFromNull(kind, id)
		if owner.IsZero() {
			return model.RewardTransaction{}, ErrNotFound
		}
		oid := orderID
		t, err := r.Apply(ctx, model.LedgerEntry{
			Owner:       owner,
			Type:        model.RewardEarn,
			Points:      points,
			OrderID:     &oid,
			Description: describe(owner),
		})
		if errors.Is(err, ErrOwnerMismatch) {
			lastErr = err
			continue
		}
		return t, err
	}
	return model.RewardTransaction{}, lastErr
}

// Balance returns the live owner's current points.
func (r *RewardRepo) Balance(ctx context.Context, owner model.OwnerRef) (int64, error) {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = r.db.QueryRowContext(ctx,
		"SELECT reward_points FROM "+table+" WHERE id = ? AND deleted_at IS NULL", owner.ID).Scan(&balance)
	return balance, notFound(err)
}

// History lists the owner's ledger, newest first.
func (r *RewardRepo) History(ctx context.Context, owner model.OwnerRef) ([]model.RewardTransaction, error) {
	kind, id := owner.Args()
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+rewardColumns+" FROM reward_transactions WHERE owner_kind = ? AND owner_id = ? ORDER BY created_at DESC, id DESC",
		kind, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RewardTransaction{}
	for rows.Next() {
		t, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const rewardColumns = "id, owner_kind, owner_id, type, points, balance_after, order_id, offer_id, description, created_at"

func scanReward(row interface{ Scan(...any) error }) (model.RewardTransaction, error) {
	var (
		t       model.RewardTransaction
		kind    sql.NullString
		ownerID sql.NullInt64
		orderID sql.NullInt64
		offerID sql.NullString
	)
	err := row.Scan(&t.ID, &kind, &ownerID, &t.Type, &t.Points, &t.BalanceAfter, &orderID, &offerID, &t.Description, &t.CreatedAt)
	t.Owner = model.OwnerFromNull(kind, ownerID)
	t.OrderID = uintPtr(orderID)
	t.OfferID = strPtr(offerID)
	return t, err
}
