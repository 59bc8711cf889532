package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// CustomerStore persists guest customers.
type CustomerStore interface {
	Create(ctx context.Context, c *model.Customer) error
	GetByID(ctx context.Context, id uint64) (model.Customer, error)
	List(ctx context.Context, q model.CustomerQuery) (model.Page[model.Customer], error)
	Search(ctx context.Context, term string, limit int) ([]model.Customer, error)
	Update(ctx context.Context, id uint64, p model.CustomerPatch) error
	SoftDelete(ctx context.Context, id uint64) error
}

// OrderSummaries lists an identity's orders with totals.
type OrderSummaries interface {
	SummariesByOwner(ctx context.Context, owner model.OwnerRef) ([]model.OrderSummary, error)
}

// CustomerService manages guest customers at the till.
type CustomerService struct {
	customers CustomerStore
	orders    OrderSummaries
}

func NewCustomerService(customers CustomerStore, orders OrderSummaries) *CustomerService {
	return &CustomerService{customers: customers, orders: orders}
}

// Create adds a customer.  A phone already held by a user or a customer is
// a conflict and nothing is written.
func (s *CustomerService) Create(ctx context.Context, c model.Customer) (model.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.Customer{}, validation("name required")
	}
	c.PhoneNumber = trimmedOrNil(c.PhoneNumber)
	c.Image = trimmedOrNil(c.Image)
	if err := s.customers.Create(ctx, &c); err != nil {
		return model.Customer{}, s.translate(err, c.ID, c.PhoneNumber)
	}
	return s.customers.GetByID(ctx, c.ID)
}

func (s *CustomerService) List(ctx context.Context, q model.CustomerQuery) (model.Page[model.Customer], error) {
	return s.customers.List(ctx, q)
}

// Search is the till lookup by name or phone.
func (s *CustomerService) Search(ctx context.Context, term string, limit int) ([]model.Customer, error) {
	if strings.TrimSpace(term) == "" {
		return nil, validation("search term required")
	}
	return s.customers.Search(ctx, term, limit)
}

func (s *CustomerService) Get(ctx context.Context, id uint64) (model.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return c, s.translate(err, id, nil)
	}
	return c, nil
}

// GetWithOrders returns the customer with its order summaries and the sum
// of its paid orders.
func (s *CustomerService) GetWithOrders(ctx context.Context, id uint64) (model.CustomerWithOrders, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return model.CustomerWithOrders{}, err
	}
	orders, err := s.orders.SummariesByOwner(ctx, model.CustomerOwner(id))
	if err != nil {
		return model.CustomerWithOrders{}, err
	}
	spent := decimal.Zero
	for _, o := range orders {
		if o.Status == model.OrderPaid {
			spent = spent.Add(o.Total)
		}
	}
	return model.CustomerWithOrders{
		Customer:    c,
		Orders:      orders,
		TotalSpent:  spent.StringFixed(2),
		OrdersCount: len(orders),
	}, nil
}

// Update patches a customer.  A new phone is checked against every other
// identity; an empty phone clears it.
func (s *CustomerService) Update(ctx context.Context, id uint64, p model.CustomerPatch) (model.Customer, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return model.Customer{}, validation("name must not be empty")
		}
		p.Name = &n
	}
	if p.PhoneNumber != nil {
		ph := strings.TrimSpace(*p.PhoneNumber)
		p.PhoneNumber = &ph
	}
	if err := s.customers.Update(ctx, id, p); err != nil {
		return model.Customer{}, s.translate(err, id, p.PhoneNumber)
	}
	return s.customers.GetByID(ctx, id)
}

// Delete soft-deletes the customer and frees its phone.
func (s *CustomerService) Delete(ctx context.Context, id uint64) error {
	if err := s.customers.SoftDelete(ctx, id); err != nil {
		return s.translate(err, id, nil)
	}
	return nil
}

func (s *CustomerService) translate(err error, id uint64, phone *string) error {
	switch {
	case errors.Is(err, repository.ErrPhoneTaken):
		ph := ""
		if phone != nil {
			ph = *phone
		}
		return conflict("phone %s is already in use", ph)
	case errors.Is(err, repository.ErrNotFound):
		return notFound("customer %d not found", id)
	}
	return err
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
