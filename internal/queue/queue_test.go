package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestFormatAudit_OrderPaid(t *testing.T) {
	uid := uint64(2)
	body, err := Encode(OrderPaid, OrderPaidEvent{OrderID: 11, UserID: &uid, PaymentMethod: "CASH", Total: "140000", PointsAwarded: 140}, at)
	require.NoError(t, err)

	line, err := FormatAudit(body)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-01T09:30:00Z] Order paid | order_id=11 | owner=user:2 | method=CASH | total=140000 | points=140\n", line)
}

func TestFormatAudit_CreditFailed(t *testing.T) {
	body, err := Encode(RewardCreditFailed, RewardCreditFailedEvent{OrderID: 3, Owner: "CUSTOMER:4", Points: 12, Error: "boom"}, at)
	require.NoError(t, err)

	line, err := FormatAudit(body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(line, "RECONCILIATION REQUIRED"))
	assert.Contains(t, line, "owner=CUSTOMER:4")
}

func TestFormatAudit_WalkInOrder(t *testing.T) {
	body, err := Encode(OrderCreated, OrderCreatedEvent{OrderID: 1, CustomerName: "Khách vãng lai", Lines: 2, Total: "10"}, at)
	require.NoError(t, err)

	line, err := FormatAudit(body)
	require.NoError(t, err)
	assert.Contains(t, line, "owner=walk-in")
}

func TestFormatAudit_UnknownTypeFallsBack(t *testing.T) {
	body, err := Encode("something.else", map[string]int{"a": 1}, at)
	require.NoError(t, err)

	line, err := FormatAudit(body)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-01T09:30:00Z] something.else | {\"a\":1}\n", line)
}

func TestFormatAudit_BadBody(t *testing.T) {
	_, err := FormatAudit([]byte("{"))
	assert.Error(t, err)
}

func TestAppendAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orders.log")
	body, err := Encode(CustomerMerged, CustomerMergedEvent{CustomerID: 4, UserID: 2, PointsMoved: 50, Source: "merge"}, at)
	require.NoError(t, err)

	require.NoError(t, appendAudit(path, body))
	require.NoError(t, appendAudit(path, body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "Customer merged"))
}
