package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := Options{User: "coffee", Pass: "p@ss", Host: "db", Port: "3306", Name: "shop"}.DSN()

	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "coffee", c.User)
	assert.Equal(t, "p@ss", c.Passwd)
	assert.Equal(t, "db:3306", c.Addr)
	assert.Equal(t, "shop", c.DBName)
	assert.True(t, c.ParseTime)
	assert.True(t, c.MultiStatements)
	assert.True(t, c.ClientFoundRows)
	assert.Equal(t, time.UTC, c.Loc)
}
