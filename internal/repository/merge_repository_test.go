package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

func expectTransfer(mock sqlmock.Sqlmock, customerID, userID uint64, customerPts, userPts int64) {
	mock.ExpectQuery(q("SELECT reward_points FROM customers WHERE id = ? AND deleted_at IS NULL FOR UPDATE")).
		WithArgs(customerID).
		WillReturnRows(sqlmock.NewRows([]string{"reward_points"}).AddRow(customerPts))
	mock.ExpectQuery(q("SELECT reward_points FROM users WHERE id = ? AND deleted_at IS NULL FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"reward_points"}).AddRow(userPts))
	mock.ExpectExec(q("UPDATE orders SET owner_kind = 'USER', owner_id = ? WHERE owner_kind = 'CUSTOMER' AND owner_id = ?")).
		WithArgs(userID, customerID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	if customerPts > 0 {
		mock.ExpectExec(q("UPDATE users SET reward_points = ? WHERE id = ?")).
			WithArgs(userPts+customerPts, userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(q("UPDATE reward_transactions SET owner_kind = 'USER'")).
		WithArgs(userID, customerID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE reviews SET owner_kind = 'USER'")).
		WithArgs(userID, customerID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("UPDATE customers SET reward_points = 0, phone_number = NULL, deleted_at = UTC_TIMESTAMP(3) WHERE id = ?")).
		WithArgs(customerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestMergeRepo_TransferCustomerToUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMergeRepo(db)

	mock.ExpectBegin()
	expectTransfer(mock, 4, 2, 140, 10)
	mock.ExpectCommit()

	res, err := repo.TransferCustomerToUser(ctx(), 4, 2)
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.EqualValues(t, 2, *res.UserID)
	assert.EqualValues(t, 3, res.OrdersMoved)
	assert.EqualValues(t, 2, res.TransactionsMoved)
	assert.EqualValues(t, 140, res.PointsMoved)
}

func TestMergeRepo_TransferDeletedCustomer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMergeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT reward_points FROM customers")).WillReturnRows(sqlmock.NewRows([]string{"reward_points"}))
	mock.ExpectRollback()

	_, err := repo.TransferCustomerToUser(ctx(), 4, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeRepo_ClaimPhoneTakenByCustomer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMergeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT reward_points FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"reward_points"}).AddRow(0))
	mock.ExpectQuery(q("SELECT id FROM users WHERE phone = ?")).
		WithArgs("0901").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("SELECT id FROM customers WHERE phone_number = ?")).
		WithArgs("0901").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectRollback()

	err := repo.ClaimPhone(ctx(), 4, "0901")
	require.ErrorIs(t, err, ErrPhoneTaken)
	var pt *PhoneTakenError
	require.ErrorAs(t, err, &pt)
	assert.Equal(t, model.CustomerOwner(8), pt.Owner)
}

func TestMergeRepo_ClaimPhone(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMergeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT reward_points FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"reward_points"}).AddRow(0))
	mock.ExpectQuery(q("SELECT id FROM users WHERE phone = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("SELECT id FROM customers WHERE phone_number = ?")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(q("UPDATE customers SET phone_number = ? WHERE id = ?")).
		WithArgs("0901", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ClaimPhone(ctx(), 4, "0901"))
}
