package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// CatalogAPI is the part of service.CatalogService used over HTTP.
type CatalogAPI interface {
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id uint64) (model.Category, error)
	UpdateCategory(ctx context.Context, id uint64, p model.CategoryPatch) (model.Category, error)
	DeleteCategory(ctx context.Context, id uint64) error
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id uint64) (model.Product, error)
	UpdateProduct(ctx context.Context, id uint64, p model.ProductPatch) (model.Product, error)
	DeleteProduct(ctx context.Context, id uint64) error
	HardDeleteProduct(ctx context.Context, id uint64) error
}

type CatalogHandler struct {
	base
	catalog CatalogAPI
}

func NewCatalogHandler(catalog CatalogAPI, timeout time.Duration, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{base: newBase(timeout, log), catalog: catalog}
}

type categoryReq struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
}

type productReq struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image" validate:"omitempty,max=500"`
	CategoryID  *uint64          `json:"category_id"`
	Status      *string          `json:"status"`
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	in := model.Category{Description: req.Description}
	if req.Name != nil {
		in.Name = *req.Name
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.CreateCategory(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.ListCategories(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.GetCategory(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req categoryReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.UpdateCategory(ctx, id, model.CategoryPatch{Name: req.Name, Description: req.Description})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.catalog.DeleteCategory(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	var req productReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.Price == nil {
		return h.fail(c, echo.NewHTTPError(http.StatusBadRequest, "price is required"))
	}
	in := model.Product{
		Description: req.Description,
		Price:       *req.Price,
		Image:       req.Image,
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.CategoryID != nil {
		in.CategoryID = *req.CategoryID
	}
	if req.Status != nil {
		in.Status = model.ProductStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.CreateProduct(ctx, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ListProducts accepts ?category_id= and ?status=.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	f := model.ProductFilter{Status: model.ProductStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))}
	if id := queryUint(c, "category_id"); id != nil {
		f.CategoryID = *id
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.ListProducts(ctx, f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req productReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	p := model.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
	}
	if req.Status != nil {
		st := model.ProductStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		p.Status = &st
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	out, err := h.catalog.UpdateProduct(ctx, id, p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.catalog.DeleteProduct(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HardDeleteProduct is admin only and refuses products referenced by orders.
func (h *CatalogHandler) HardDeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.catalog.HardDeleteProduct(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
