package model

import (
	"math"
	"time"
)

// Review is a customer review recorded by an admin.
type Review struct {
	ID         uint64     `json:"id"`
	Author     OwnerRef   `json:"-"`
	AuthorName *string    `json:"author_name"`
	Comment    string     `json:"comment"`
	Rating     float64    `json:"rating"`
	Images     []string   `json:"images"`
	CreatedBy  *uint64    `json:"created_by,omitempty"`
	UpdatedBy  *uint64    `json:"updated_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// ValidRating reports whether r is one of 0.5, 1.0, …, 5.0.
func ValidRating(r float64) bool {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0.5 || r > 5 {
		return false
	}
	return math.Round(r*2)/2 == r
}

// ReviewQuery drives admin and public listings.  Zero values mean "any".
type ReviewQuery struct {
	Page           int
	Limit          int
	Search         string
	Rating         *float64
	MinRating      *float64
	MaxRating      *float64
	Author         OwnerRef
	Sort           []SortField
	IncludeDeleted bool
}

// SortField is a validated ordering clause.
type SortField struct {
	Column string
	Desc   bool
}

type ReviewPatch struct {
	Author  *OwnerRef
	Comment *string
	Rating  *float64
	Images  *[]string
}

// Page wraps one page of results.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
