package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestOwnerFromIDs(t *testing.T) {
	ref, ok := OwnerFromIDs(u64(3), nil)
	require.True(t, ok)
	assert.Equal(t, UserOwner(3), ref)

	ref, ok = OwnerFromIDs(nil, u64(9))
	require.True(t, ok)
	assert.Equal(t, CustomerOwner(9), ref)

	ref, ok = OwnerFromIDs(nil, nil)
	require.True(t, ok)
	assert.True(t, ref.IsZero())

	_, ok = OwnerFromIDs(u64(1), u64(2))
	assert.False(t, ok)
}

func TestOwnerRef_Args(t *testing.T) {
	k, id := OwnerRef{}.Args()
	assert.Nil(t, k)
	assert.Nil(t, id)

	k, id = CustomerOwner(5).Args()
	assert.Equal(t, "CUSTOMER", k)
	assert.Equal(t, uint64(5), id)
}

func TestPointsForTotal(t *testing.T) {
	cases := map[string]int64{
		"140000":  140,
		"999.99":  0,
		"1000":    1,
		"12345.5": 12,
		"0":       0,
		"-5000":   0,
	}
	for in, want := range cases {
		assert.Equal(t, want, PointsForTotal(decimal.RequireFromString(in)), in)
	}
}

func TestIsWalkInName(t *testing.T) {
	assert.True(t, IsWalkInName(""))
	assert.True(t, IsWalkInName("   "))
	assert.True(t, IsWalkInName("Khách vãng lai"))
	assert.True(t, IsWalkInName("  khách VÃNG lai "))
	assert.False(t, IsWalkInName("Lan"))
}

func TestValidRating(t *testing.T) {
	for _, r := range []float64{0.5, 1, 2.5, 4.5, 5} {
		assert.True(t, ValidRating(r), r)
	}
	for _, r := range []float64{0, 0.25, 1.2, 5.5, -1} {
		assert.False(t, ValidRating(r), r)
	}
}

func TestOrder_MarshalJSON(t *testing.T) {
	o := Order{
		ID:           11,
		CustomerName: "Lan",
		Owner:        CustomerOwner(4),
		Status:       OrderPaid,
		Details: []OrderDetail{
			{Quantity: 2, UnitPrice: decimal.NewFromInt(45000), Subtotal: decimal.NewFromInt(90000)},
			{Quantity: 1, UnitPrice: decimal.NewFromInt(50000), Subtotal: decimal.NewFromInt(50000)},
		},
	}
	raw, err := json.Marshal(o)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got["user_id"])
	assert.EqualValues(t, 4, got["customer_id"])
	assert.Equal(t, "140000", got["total"])
	assert.Equal(t, "PAID", got["status"])
	assert.NotContains(t, got, "Owner")
}

func TestStatusTransition_BecamePaid(t *testing.T) {
	assert.True(t, StatusTransition{Previous: OrderPendingPayment, Current: OrderPaid}.BecamePaid())
	assert.False(t, StatusTransition{Previous: OrderPaid, Current: OrderPaid}.BecamePaid())
	assert.False(t, StatusTransition{Previous: OrderPendingPayment, Current: OrderCancelled}.BecamePaid())
}

func TestFindOffer(t *testing.T) {
	o, ok := FindOffer("discount-10")
	require.True(t, ok)
	assert.EqualValues(t, 120, o.Cost)
	_, ok = FindOffer("nope")
	assert.False(t, ok)
}
