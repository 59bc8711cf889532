package model

import "time"

// RewardType is the direction of a ledger row.
type RewardType string

const (
	RewardEarn   RewardType = "EARN"
	RewardRedeem RewardType = "REDEEM"
)

// RewardTransaction is an append-only ledger row.  Points is always positive;
// Type gives the direction.  BalanceAfter is the owner's balance right after
// the row was written.
type RewardTransaction struct {
	ID           uint64     `json:"id"`
	Owner        OwnerRef   `json:"-"`
	Type         RewardType `json:"type"`
	Points       int64      `json:"points"`
	BalanceAfter int64      `json:"balance_after"`
	OrderID      *uint64    `json:"order_id"`
	OfferID      *string    `json:"offer_id"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LedgerEntry is a row to append.  OrderID, when set, ties an EARN entry to
// the order whose settlement marker is written in the same transaction.
type LedgerEntry struct {
	Owner       OwnerRef
	Type        RewardType
	Points      int64
	OrderID     *uint64
	OfferID     *string
	Description string
}

// RewardOffer is an item in the fixed redemption catalog.
type RewardOffer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
}

// Offers is the redemption catalog.
var Offers = []RewardOffer{
	{ID: "free-small-drink", Name: "Free small drink", Description: "Any small size drink on the menu", Cost: 80},
	{ID: "free-topping", Name: "Free topping", Description: "One extra topping for a drink", Cost: 40},
	{ID: "discount-10", Name: "10% discount", Description: "10% off the next order", Cost: 120},
}

// FindOffer looks up an offer by id.
func FindOffer(id string) (RewardOffer, bool) {
	for _, o := range Offers {
		if o.ID == id {
			return o, true
		}
	}
	return RewardOffer{}, false
}
