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

// ReviewAPI is the part of service.ReviewService used over HTTP.
type ReviewAPI interface {
	Create(ctx context.Context, adminID uint64, in service.ReviewInput) (model.Review, error)
	List(ctx context.Context, p service.ReviewListParams) (model.Page[model.Review], error)
	ListPublic(ctx context.Context, p service.ReviewListParams) (model.Page[model.Review], error)
	Get(ctx context.Context, id uint64, includeDeleted bool) (model.Review, error)
	Update(ctx context.Context, adminID, id uint64, in service.ReviewUpdate) (model.Review, error)
	Delete(ctx context.Context, adminID, id uint64) error
}

type ReviewHandler struct {
	base
	reviews ReviewAPI
}

func NewReviewHandler(reviews ReviewAPI, timeout time.Duration, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{base: newBase(timeout, log), reviews: reviews}
}

type reviewReq struct {
	UserID     *uint64   `json:"user_id"`
	CustomerID *uint64   `json:"customer_id"`
	Comment    *string   `json:"comment" validate:"omitempty,max=2000"`
	Rating     *float64  `json:"rating"`
	Images     *[]string `json:"images" validate:"omitempty,max=10"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.Rating == nil {
		return h.fail(c, echo.NewHTTPError(http.StatusBadRequest, "rating is required"))
	}
	in := service.ReviewInput{UserID: req.UserID, CustomerID: req.CustomerID, Rating: *req.Rating}
	if req.Comment != nil {
		in.Comment = *req.Comment
	}
	if req.Images != nil {
		in.Images = *req.Images
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.reviews.Create(ctx, adminID, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// listParams reads the shared list query: page, limit, search, rating,
// min_rating, max_rating, user_id, customer_id, sort, include_deleted.
func listParams(c echo.Context) (service.ReviewListParams, error) {
	p := service.ReviewListParams{
		Page:           queryInt(c, "page", 1),
		Limit:          queryInt(c, "limit", 20),
		Search:         c.QueryParam("search"),
		UserID:         queryUint(c, "user_id"),
		CustomerID:     queryUint(c, "customer_id"),
		Sort:           c.QueryParam("sort"),
		IncludeDeleted: queryBool(c, "include_deleted"),
	}
	for name, dst := range map[string]**float64{
		"rating":     &p.Rating,
		"min_rating": &p.MinRating,
		"max_rating": &p.MaxRating,
	} {
		v, ok := queryFloat(c, name)
		if !ok {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
		*dst = v
	}
	return p, nil
}

func (h *ReviewHandler) List(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.reviews.List(ctx, p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReviewHandler) ListPublic(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.reviews.ListPublic(ctx, p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReviewHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.reviews.Get(ctx, id, queryBool(c, "include_deleted"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReviewHandler) Update(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.reviews.Update(ctx, adminID, id, service.ReviewUpdate{
		UserID:     req.UserID,
		CustomerID: req.CustomerID,
		Comment:    req.Comment,
		Rating:     req.Rating,
		Images:     req.Images,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.reviews.Delete(ctx, adminID, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
