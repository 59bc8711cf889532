package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	GetByID(ctx context.Context, id uint64, includeDeleted bool) (model.Review, error)
	List(ctx context.Context, q model.ReviewQuery) (model.Page[model.Review], error)
	Update(ctx context.Context, rv *model.Review) error
	SoftDelete(ctx context.Context, id, adminID uint64) error
}

// ReviewInput creates a review.  Exactly one author id is required.
type ReviewInput struct {
	UserID     *uint64
	CustomerID *uint64
	Comment    string
	Rating     float64
	Images     []string
}

// ReviewUpdate changes a review.  Setting either author id switches the
// author; setting both is rejected.
type ReviewUpdate struct {
	UserID     *uint64
	CustomerID *uint64
	Comment    *string
	Rating     *float64
	Images     *[]string
}

// ReviewListParams are the raw list parameters accepted from the API.
type ReviewListParams struct {
	Page           int
	Limit          int
	Search         string
	Rating         *float64
	MinRating      *float64
	MaxRating      *float64
	UserID         *uint64
	CustomerID     *uint64
	Sort           string
	IncludeDeleted bool
}

// ReviewService manages reviews entered by admins.
type ReviewService struct {
	reviews   ReviewStore
	users     UserLookup
	customers CustomerGetter
}

func NewReviewService(reviews ReviewStore, users UserLookup, customers CustomerGetter) *ReviewService {
	return &ReviewService{reviews: reviews, users: users, customers: customers}
}

func (s *ReviewService) Create(ctx context.Context, adminID uint64, in ReviewInput) (model.Review, error) {
	author, ok := model.OwnerFromIDs(in.UserID, in.CustomerID)
	if !ok {
		return model.Review{}, validation("user_id and customer_id are mutually exclusive")
	}
	if author.IsZero() {
		return model.Review{}, validation("user_id or customer_id is required")
	}
	if !model.ValidRating(in.Rating) {
		return model.Review{}, validation("rating must be between 0.5 and 5 in steps of 0.5")
	}
	if err := s.requireAuthor(ctx, author); err != nil {
		return model.Review{}, err
	}
	by := adminID
	rv := model.Review{
		Author:    author,
		Comment:   strings.TrimSpace(in.Comment),
		Rating:    in.Rating,
		Images:    cleanImages(in.Images),
		CreatedBy: &by,
		UpdatedBy: &by,
	}
	if err := s.reviews.Create(ctx, &rv); err != nil {
		return model.Review{}, err
	}
	return s.reviews.GetByID(ctx, rv.ID, false)
}

// List serves the admin listing.
func (s *ReviewService) List(ctx context.Context, p ReviewListParams) (model.Page[model.Review], error) {
	q, err := s.query(p)
	if err != nil {
		return model.Page[model.Review]{}, err
	}
	return s.reviews.List(ctx, q)
}

// ListPublic serves the public listing: live reviews only, no author or
// text filters.
func (s *ReviewService) ListPublic(ctx context.Context, p ReviewListParams) (model.Page[model.Review], error) {
	q, err := s.query(ReviewListParams{
		Page:      p.Page,
		Limit:     p.Limit,
		MinRating: p.MinRating,
		MaxRating: p.MaxRating,
		Sort:      p.Sort,
	})
	if err != nil {
		return model.Page[model.Review]{}, err
	}
	return s.reviews.List(ctx, q)
}

func (s *ReviewService) Get(ctx context.Context, id uint64, includeDeleted bool) (model.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id, includeDeleted)
	if errors.Is(err, repository.ErrNotFound) {
		return rv, notFound("review %d not found", id)
	}
	return rv, err
}

func (s *ReviewService) Update(ctx context.Context, adminID, id uint64, in ReviewUpdate) (model.Review, error) {
	rv, err := s.Get(ctx, id, false)
	if err != nil {
		return rv, err
	}
	if in.UserID != nil || in.CustomerID != nil {
		author, ok := model.OwnerFromIDs(in.UserID, in.CustomerID)
		if !ok {
			return model.Review{}, validation("user_id and customer_id are mutually exclusive")
		}
		if err := s.requireAuthor(ctx, author); err != nil {
			return model.Review{}, err
		}
		rv.Author = author
	}
	if in.Comment != nil {
		rv.Comment = strings.TrimSpace(*in.Comment)
	}
	if in.Rating != nil {
		if !model.ValidRating(*in.Rating) {
			return model.Review{}, validation("rating must be between 0.5 and 5 in steps of 0.5")
		}
		rv.Rating = *in.Rating
	}
	if in.Images != nil {
		rv.Images = cleanImages(*in.Images)
	}
	by := adminID
	rv.UpdatedBy = &by
	if err := s.reviews.Update(ctx, &rv); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Review{}, notFound("review %d not found", id)
		}
		return model.Review{}, err
	}
	return s.reviews.GetByID(ctx, id, false)
}

func (s *ReviewService) Delete(ctx context.Context, adminID, id uint64) error {
	err := s.reviews.SoftDelete(ctx, id, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("review %d not found", id)
	}
	return err
}

func (s *ReviewService) query(p ReviewListParams) (model.ReviewQuery, error) {
	q := model.ReviewQuery{
		Page:           p.Page,
		Limit:          p.Limit,
		Search:         strings.TrimSpace(p.Search),
		IncludeDeleted: p.IncludeDeleted,
	}
	for _, r := range []*float64{p.Rating, p.MinRating, p.MaxRating} {
		if r != nil && !model.ValidRating(*r) {
			return q, validation("rating filters must be between 0.5 and 5 in steps of 0.5")
		}
	}
	if p.MinRating != nil && p.MaxRating != nil && *p.MinRating > *p.MaxRating {
		return q, validation("min_rating must not exceed max_rating")
	}
	q.Rating, q.MinRating, q.MaxRating = p.Rating, p.MinRating, p.MaxRating

	author, ok := model.OwnerFromIDs(p.UserID, p.CustomerID)
	if !ok {
		return q, validation("user_id and customer_id are mutually exclusive")
	}
	q.Author = author

	sort, err := ParseSort(p.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

// ParseSort parses "field:dir[,field:dir]" where field is createdAt,
// updatedAt or rating and dir is asc or desc (default desc).
func ParseSort(raw string) ([]model.SortField, error) {
	var out []model.SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		col, ok := repository.ReviewSortColumn(strings.TrimSpace(field))
		if !ok {
			return nil, validation("cannot sort by %q", field)
		}
		sf := model.SortField{Column: col, Desc: true}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "desc":
		case "asc":
			sf.Desc = false
		default:
			return nil, validation("invalid sort direction %q", dir)
		}
		out = append(out, sf)
	}
	return out, nil
}

func (s *ReviewService) requireAuthor(ctx context.Context, author model.OwnerRef) error {
	var err error
	if author.Kind == model.OwnerUser {
		_, err = s.users.GetByID(ctx, author.ID)
	} else {
		_, err = s.customers.GetByID(ctx, author.ID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return validation("%s %d not found or deleted", ownerNoun(author), author.ID)
	}
	return err
}

// cleanImages trims URLs and drops empty ones, keeping order.
func cleanImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
