package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/queue"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// OrderStore persists orders and their lines.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order, lines []model.NewOrderLine) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	List(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	ApplyPatch(ctx context.Context, id uint64, p model.OrderPatch) (model.StatusTransition, error)
	Delete(ctx context.Context, id uint64) error
}

// ProductLookup reports which product ids do not name a live product.
type ProductLookup interface {
	MissingIDs(ctx context.Context, ids []uint64) ([]uint64, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// CustomerResolver finds guest customers, creating phone-less ones by name.
type CustomerResolver interface {
	GetByID(ctx context.Context, id uint64) (model.Customer, error)
	CreateAnonymous(ctx context.Context, name string) (model.Customer, error)
}

// OrderCreditor credits the points of a paid order.
type OrderCreditor interface {
	CreditOrder(ctx context.Context, points int64, meta EarnMeta) (model.RewardTransaction, error)
}

// OrderLineInput is one requested line.
type OrderLineInput struct {
	ProductID uint64
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderInput is a new order.  At most one of UserID and CustomerID may
// be set.
type CreateOrderInput struct {
	CustomerName  string
	UserID        *uint64
	CustomerID    *uint64
	PaymentMethod *model.PaymentMethod
	Items         []OrderLineInput
}

// OrderService runs the order lifecycle: capture, status transitions and
// reward settlement on PAID.
type OrderService struct {
	orders    OrderStore
	products  ProductLookup
	users     UserLookup
	customers CustomerResolver
	rewards   OrderCreditor
	events    EventPublisher
	log       zerolog.Logger
}

func NewOrderService(orders OrderStore, products ProductLookup, users UserLookup, customers CustomerResolver,
	rewards OrderCreditor, events EventPublisher, log zerolog.Logger) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	return &OrderService{
		orders:    orders,
		products:  products,
		users:     users,
		customers: customers,
		rewards:   rewards,
		events:    events,
		log:       log.With().Str("component", "orders").Logger(),
	}
}

// Create validates in, resolves the owning identity and stores the order
// with all its lines in one transaction.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, validation("order must have at least one item")
	}
	owner, ok := model.OwnerFromIDs(in.UserID, in.CustomerID)
	if !ok {
		return nil, validation("user_id and customer_id are mutually exclusive")
	}
	method := model.PaymentCash
	if in.PaymentMethod != nil {
		if !in.PaymentMethod.Valid() {
			return nil, validation("invalid payment_method %q", *in.PaymentMethod)
		}
		method = *in.PaymentMethod
	}

	lines := make([]model.NewOrderLine, 0, len(in.Items))
	ids := make([]uint64, 0, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == 0 {
			return nil, validation("items[%d]: product_id required", i)
		}
		if it.Quantity < 1 {
			return nil, validation("items[%d]: quantity must be at least 1", i)
		}
		if it.UnitPrice.IsNegative() {
			return nil, validation("items[%d]: unit_price must not be negative", i)
		}
		lines = append(lines, model.NewOrderLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
		ids = append(ids, it.ProductID)
	}
	missing, err := s.products.MissingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, notFound("product %d not found", missing[0])
	}

	name := strings.TrimSpace(in.CustomerName)
	switch owner.Kind {
	case model.OwnerUser:
		u, err := s.users.GetByID(ctx, owner.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation("user %d not found or deleted", owner.ID)
		}
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = u.FullName
		}
	case model.OwnerCustomer:
		c, err := s.customers.GetByID(ctx, owner.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation("customer %d not found or deleted", owner.ID)
		}
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = c.Name
		}
	default:
		if !model.IsWalkInName(name) {
			c, err := s.customers.CreateAnonymous(ctx, name)
			if err != nil {
				return nil, err
			}
			owner = model.CustomerOwner(c.ID)
		}
	}
	if name == "" {
		name = model.WalkInName
	}

	o := &model.Order{
		CustomerName:  name,
		Owner:         owner,
		PaymentMethod: &method,
		Status:        model.OrderPendingPayment,
	}
	if err := s.orders.Create(ctx, o, lines); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation("%s not found or deleted", ownerNoun(owner))
		}
		return nil, err
	}
	created, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint64("order_id", created.ID).Str("owner", owner.String()).
		Str("total", created.Total().String()).Msg("order created")
	emit(ctx, s.events, s.log, queue.OrderCreated, queue.OrderCreatedEvent{
		OrderID:      created.ID,
		CustomerName: created.CustomerName,
		UserID:       created.Owner.UserID(),
		CustomerID:   created.Owner.CustomerID(),
		Lines:        len(created.Details),
		Total:        created.Total().String(),
	})
	return created, nil
}

// List returns orders newest first.
func (s *OrderService) List(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation("invalid status %q", f.Status)
	}
	return s.orders.List(ctx, f)
}

// Get returns one order with its lines.
func (s *OrderService) Get(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("order %d not found", id)
	}
	return o, err
}

// Update applies a status/payment change.  On the first move into PAID the
// product sales counters are bumped in the same transaction and, after
// commit, floor(total/1000) points are credited to the order's owner.  A
// failed credit leaves the order PAID and returns *PartialFailureError.
func (s *OrderService) Update(ctx context.Context, id uint64, p model.OrderPatch) (*model.Order, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, validation("invalid status %q", *p.Status)
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return nil, validation("invalid payment_method %q", *p.PaymentMethod)
	}
	if p.CancellationReason != nil {
		r := strings.TrimSpace(*p.CancellationReason)
		p.CancellationReason = &r
	}
	if p.Status != nil && *p.Status == model.OrderCancelled &&
		(p.CancellationReason == nil || *p.CancellationReason == "") {
		return nil, validation("cancellation_reason is required when cancelling an order")
	}

	tr, err := s.orders.ApplyPatch(ctx, id, p)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("order %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tr.BecamePaid() {
		return o, nil
	}

	s.log.Info().Uint64("order_id", o.ID).Str("previous", string(tr.Previous)).Msg("order paid")
	settleErr := s.settle(ctx, o)
	emit(ctx, s.events, s.log, queue.OrderPaid, queue.OrderPaidEvent{
		OrderID:       o.ID,
		UserID:        o.Owner.UserID(),
		CustomerID:    o.Owner.CustomerID(),
		PaymentMethod: paymentMethodString(o.PaymentMethod),
		Total:         o.Total().String(),
		PointsAwarded: o.PointsAwarded,
	})
	if settleErr != nil {
		return o, settleErr
	}
	return o, nil
}

// SettlePoints credits the points of a PAID order that were not credited
// when it was paid.  Settled orders and orders with nothing to credit are
// returned unchanged.
func (s *OrderService) SettlePoints(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderPaid {
		return nil, validation("order %d is not paid", id)
	}
	if o.PointsSettledAt != nil {
		return o, nil
	}
	if err := s.settle(ctx, o); err != nil {
		return o, err
	}
	return o, nil
}

// settle credits o's points and mirrors the settlement onto o.
func (s *OrderService) settle(ctx context.Context, o *model.Order) error {
	total := o.Total()
	points := model.PointsForTotal(total)
	if points <= 0 || o.Owner.IsZero() {
		return nil
	}
	id := o.ID
	t, err := s.rewards.CreditOrder(ctx, points, EarnMeta{OrderID: &id, Total: &total})
	switch {
	case err == nil:
		now := t.CreatedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		o.PointsAwarded = points
		o.PointsSettledAt = &now
		if !t.Owner.IsZero() {
			o.Owner = t.Owner
		}
		return nil
	case errors.Is(err, repository.ErrAlreadySettled):
		fresh, gerr := s.orders.GetByID(ctx, o.ID)
		if gerr == nil {
			*o = *fresh
		}
		return nil
	}

	s.log.Error().Err(err).Uint64("order_id", o.ID).Str("owner", o.Owner.String()).
		Int64("points", points).Msg("reconciliation required: reward points not credited")
	emit(ctx, s.events, s.log, queue.RewardCreditFailed, queue.RewardCreditFailedEvent{
		OrderID: o.ID,
		Owner:   o.Owner.String(),
		Points:  points,
		Error:   err.Error(),
	})
	return &PartialFailureError{Order: o, Cause: err}
}

// Remove hard-deletes an order and its lines.  Sales counters and credited
// points are left as they are.
func (s *OrderService) Remove(ctx context.Context, id uint64) error {
	err := s.orders.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("order %d not found", id)
	}
	if err == nil {
		s.log.Info().Uint64("order_id", id).Msg("order deleted")
	}
	return err
}

func paymentMethodString(p *model.PaymentMethod) string {
	if p == nil {
		return ""
	}
	return string(*p)
}
