package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/service"
)

// RewardAPI is the part of service.RewardService used over HTTP.
type RewardAPI interface {
	Redeem(ctx context.Context, owner model.OwnerRef, in service.RedeemInput) (model.RewardTransaction, error)
	Points(ctx context.Context, owner model.OwnerRef) (int64, error)
	History(ctx context.Context, owner model.OwnerRef) ([]model.RewardTransaction, error)
	Offers() []model.RewardOffer
}

type RewardHandler struct {
	base
	rewards RewardAPI
}

func NewRewardHandler(rewards RewardAPI, timeout time.Duration, log zerolog.Logger) *RewardHandler {
	return &RewardHandler{base: newBase(timeout, log), rewards: rewards}
}

type redeemReq struct {
	Points      int64  `json:"points" validate:"min=0"`
	OfferID     string `json:"offer_id"`
	Description string `json:"description" validate:"max=255"`
}

type pointsResp struct {
	RewardPoints int64 `json:"reward_points"`
}

// owner resolves whose balance a request addresses: the caller on the
// /rewards routes, the path customer on the staff routes.
func (h *RewardHandler) owner(c echo.Context) (model.OwnerRef, error) {
	if c.Param("id") != "" {
		id, err := parseID(c, "id")
		if err != nil {
			return model.OwnerRef{}, err
		}
		return model.CustomerOwner(id), nil
	}
	uid, err := getUserID(c)
	if err != nil {
		return model.OwnerRef{}, err
	}
	return model.UserOwner(uid), nil
}

func (h *RewardHandler) Points(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	p, err := h.rewards.Points(ctx, owner)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pointsResp{RewardPoints: p})
}

func (h *RewardHandler) History(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rows, err := h.rewards.History(ctx, owner)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *RewardHandler) Redeem(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req redeemReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	t, err := h.rewards.Redeem(ctx, owner, service.RedeemInput{
		Points:      req.Points,
		OfferID:     req.OfferID,
		Description: req.Description,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transaction": t, "reward_points": t.BalanceAfter})
}

func (h *RewardHandler) Offers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rewards.Offers())
}
