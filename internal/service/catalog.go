package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

type CategoryStore interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id uint64) (model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, id uint64, p model.CategoryPatch) error
	SoftDelete(ctx context.Context, id uint64) error
}

type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id uint64) (model.Product, error)
	List(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	Update(ctx context.Context, id uint64, p model.ProductPatch) error
	SoftDelete(ctx context.Context, id uint64) error
	HardDelete(ctx context.Context, id uint64) error
}

// CatalogService manages categories and products.  Sales counters are not
// writable here; they move only when an order is paid.
type CatalogService struct {
	categories CategoryStore
	products   ProductStore
}

func NewCatalogService(categories CategoryStore, products ProductStore) *CatalogService {
	return &CatalogService{categories: categories, products: products}
}

func (s *CatalogService) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.Category{}, validation("name required")
	}
	if err := s.categories.Create(ctx, &c); err != nil {
		return model.Category{}, err
	}
	return s.categories.GetByID(ctx, c.ID)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id uint64) (model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c, notFound("category %d not found", id)
	}
	return c, err
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint64, p model.CategoryPatch) (model.Category, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return model.Category{}, validation("name must not be empty")
		}
		p.Name = &n
	}
	if err := s.categories.Update(ctx, id, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Category{}, notFound("category %d not found", id)
		}
		return model.Category{}, err
	}
	return s.categories.GetByID(ctx, id)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uint64) error {
	err := s.categories.SoftDelete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("category %d not found", id)
	}
	return err
}

// CreateProduct adds a product to a live category.
func (s *CatalogService) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return model.Product{}, validation("name required")
	}
	if p.Price.IsNegative() {
		return model.Product{}, validation("price must not be negative")
	}
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	if !p.Status.Valid() {
		return model.Product{}, validation("invalid status %q", p.Status)
	}
	if err := s.requireCategory(ctx, p.CategoryID); err != nil {
		return model.Product{}, err
	}
	p.SalesCount = 0
	if err := s.products.Create(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, validation("category %d not found", p.CategoryID)
		}
		return model.Product{}, err
	}
	return s.products.GetByID(ctx, p.ID)
}

func (s *CatalogService) ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation("invalid status %q", f.Status)
	}
	return s.products.List(ctx, f)
}

// GetProduct returns a live product.
func (s *CatalogService) GetProduct(ctx context.Context, id uint64) (model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return p, notFound("product %d not found", id)
	}
	return p, err
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint64, p model.ProductPatch) (model.Product, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return model.Product{}, validation("name must not be empty")
		}
		p.Name = &n
	}
	if p.Price != nil && p.Price.IsNegative() {
		return model.Product{}, validation("price must not be negative")
	}
	if p.Status != nil && !p.Status.Valid() {
		return model.Product{}, validation("invalid status %q", *p.Status)
	}
	if p.CategoryID != nil {
		if err := s.requireCategory(ctx, *p.CategoryID); err != nil {
			return model.Product{}, err
		}
	}
	if err := s.products.Update(ctx, id, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, notFound("product %d not found", id)
		}
		return model.Product{}, err
	}
	return s.products.GetByID(ctx, id)
}

// DeleteProduct soft-deletes; past orders keep their lines.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint64) error {
	err := s.products.SoftDelete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("product %d not found", id)
	}
	return err
}

// HardDeleteProduct removes a product that no order references.
func (s *CatalogService) HardDeleteProduct(ctx context.Context, id uint64) error {
	err := s.products.HardDelete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("product %d not found", id)
	case errors.Is(err, repository.ErrConflict):
		return conflict("product %d is referenced by orders", id)
	}
	return err
}

func (s *CatalogService) requireCategory(ctx context.Context, id uint64) error {
	if id == 0 {
		return validation("category_id required")
	}
	_, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return validation("category %d not found", id)
	}
	return err
}
