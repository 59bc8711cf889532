package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// RewardStore is the ledger storage used by RewardService.
type RewardStore interface {
	Apply(ctx context.Context, e model.LedgerEntry) (model.RewardTransaction, error)
	CreditOrder(ctx context.Context, orderID uint64, points int64, describe func(model.OwnerRef) string) (model.RewardTransaction, error)
	Balance(ctx context.Context, owner model.OwnerRef) (int64, error)
	History(ctx context.Context, owner model.OwnerRef) ([]model.RewardTransaction, error)
}

// EarnMeta describes where earned points come from.  An empty Description
// is generated from OrderID and Total.
type EarnMeta struct {
	OrderID     *uint64
	Total       *decimal.Decimal
	Description string
}

func (m EarnMeta) describe(points int64) string {
	if d := strings.TrimSpace(m.Description); d != "" {
		return d
	}
	var b strings.Builder
	if m.OrderID != nil {
		fmt.Fprintf(&b, "Earned %d points from order #%d", points, *m.OrderID)
	} else {
		fmt.Fprintf(&b, "Earned %d reward points", points)
	}
	if m.Total != nil {
		fmt.Fprintf(&b, " (total %s)", m.Total.String())
	}
	return b.String()
}

// RedeemInput is a redemption request.  When OfferID names a catalog offer
// and Points is zero, the offer's cost is used.
type RedeemInput struct {
	Points      int64
	OfferID     string
	Description string
}

// RewardService is the loyalty ledger.
type RewardService struct {
	store RewardStore
	log   zerolog.Logger
}

func NewRewardService(store RewardStore, log zerolog.Logger) *RewardService {
	return &RewardService{store: store, log: log.With().Str("component", "rewards").Logger()}
}

// Earn credits points to owner and returns the new balance.  Zero or
// negative points are a no-op returning the current balance.
func (s *RewardService) Earn(ctx context.Context, owner model.OwnerRef, points int64, meta EarnMeta) (int64, error) {
	if owner.IsZero() {
		return 0, validation("owner required")
	}
	if points <= 0 {
		return s.Points(ctx, owner)
	}
	t, err := s.store.Apply(ctx, model.LedgerEntry{
		Owner:       owner,
		Type:        model.RewardEarn,
		Points:      points,
		OrderID:     meta.OrderID,
		Description: meta.describe(points),
	})
	if err != nil {
		return 0, s.translate(err, owner)
	}
	return t.BalanceAfter, nil
}

// Redeem spends points and returns the ledger row.  Spending more than the
// balance is rejected and leaves the balance unchanged.
func (s *RewardService) Redeem(ctx context.Context, owner model.OwnerRef, in RedeemInput) (model.RewardTransaction, error) {
	if owner.IsZero() {
		return model.RewardTransaction{}, validation("owner required")
	}
	var offer *model.RewardOffer
	if id := strings.TrimSpace(in.OfferID); id != "" {
		o, ok := model.FindOffer(id)
		if !ok {
			return model.RewardTransaction{}, validation("unknown offer %q", id)
		}
		offer = &o
		if in.Points == 0 {
			in.Points = o.Cost
		}
	}
	if in.Points < 1 {
		return model.RewardTransaction{}, validation("points must be at least 1")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = fmt.Sprintf("Redeemed %d points", in.Points)
		if offer != nil {
			desc += " for " + offer.Name
		}
	}
	e := model.LedgerEntry{Owner: owner, Type: model.RewardRedeem, Points: in.Points, Description: desc}
	if offer != nil {
		id := offer.ID
		e.OfferID = &id
	}
	t, err := s.store.Apply(ctx, e)
	if err != nil {
		return model.RewardTransaction{}, s.translate(err, owner)
	}
	s.log.Info().Str("owner", owner.String()).Int64("points", in.Points).Int64("balance", t.BalanceAfter).Msg("points redeemed")
	return t, nil
}

// Points returns owner's balance.
func (s *RewardService) Points(ctx context.Context, owner model.OwnerRef) (int64, error) {
	b, err := s.store.Balance(ctx, owner)
	if err != nil {
		return 0, s.translate(err, owner)
	}
	return b, nil
}

// History lists owner's ledger rows, newest first.
func (s *RewardService) History(ctx context.Context, owner model.OwnerRef) ([]model.RewardTransaction, error) {
	if _, err := s.Points(ctx, owner); err != nil {
		return nil, err
	}
	return s.store.History(ctx, owner)
}

// Offers returns the redemption catalog.
func (s *RewardService) Offers() []model.RewardOffer {
	out := make([]model.RewardOffer, len(model.Offers))
	copy(out, model.Offers)
	return out
}

// CreditOrder is Earn for a paid order: the points go to whoever owns the
// order when the ledger row is written, which a concurrent merge may have
// changed.  meta.OrderID is required.  Repository sentinels are passed
// through so callers can tell an already settled order apart from a failure.
func (s *RewardService) CreditOrder(ctx context.Context, points int64, meta EarnMeta) (model.RewardTransaction, error) {
	if meta.OrderID == nil {
		return model.RewardTransaction{}, validation("order id required")
	}
	orderID := *meta.OrderID
	t, err := s.store.CreditOrder(ctx, orderID, points, func(model.OwnerRef) string {
		return meta.describe(points)
	})
	if err != nil {
		return t, err
	}
	s.log.Info().Uint64("order_id", orderID).Str("owner", t.Owner.String()).
		Int64("points", points).Int64("balance", t.BalanceAfter).Msg("points credited")
	return t, nil
}

func (s *RewardService) translate(err error, owner model.OwnerRef) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientPoints):
		return validation("not enough reward points")
	case errors.Is(err, repository.ErrNotFound):
		return notFound("%s not found", ownerNoun(owner))
	case errors.Is(err, repository.ErrAlreadySettled):
		return conflict("order points already settled")
	}
	return err
}

func ownerNoun(o model.OwnerRef) string {
	if o.Kind == model.OwnerCustomer {
		return "customer"
	}
	return "user"
}
