package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo keeps one refresh token per user.  Only its SHA-256 hash is
// stored, on the users row, so issuing a token rotates the previous one out.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Issue stores tokenHash as the user's only refresh token.
func (r *TokenRepo) Issue(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return execAffectingOne(ctx, r.DB,
		"UPDATE users SET refresh_token_hash = ?, refresh_token_expires_at = ? WHERE id = ? AND deleted_at IS NULL",
		tokenHash, exp.UTC(), userID)
}

// Consume redeems a refresh token: it is cleared and its owner returned.
// Expired tokens are cleared too but report ErrNotFound.  Two concurrent
// calls with the same token cannot both succeed.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID  uint64
		expired bool
	)
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exp sql.NullTime
		err := tx.QueryRowContext(ctx,
			"SELECT id, refresh_token_expires_at FROM users WHERE refresh_token_hash = ? AND deleted_at IS NULL FOR UPDATE",
			tokenHash).Scan(&userID, &exp)
		if err != nil {
			return notFound(err)
		}
		expired = !exp.Valid || time.Now().UTC().After(exp.Time)
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE id = ?", userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	if expired {
		return 0, ErrNotFound
	}
	return userID, nil
}

// RevokeUser signs the user out everywhere.
func (r *TokenRepo) RevokeUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE id = ?",
		userID)
	return err
}
