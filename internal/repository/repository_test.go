package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newMock returns a sqlmock-backed *sql.DB; expectations are verified when
// the test ends.
func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// q turns a literal SQL fragment into a sqlmock pattern.
func q(sql string) string { return regexp.QuoteMeta(sql) }

func ctx() context.Context { return context.Background() }

var now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
