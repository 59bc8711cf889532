package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/queue"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

// MergeStore performs the customer to user transfer.
type MergeStore interface {
	TransferCustomerToUser(ctx context.Context, customerID, userID uint64) (model.MergeResult, error)
	ClaimPhone(ctx context.Context, customerID uint64, phone string) error
}

// PhoneLookup finds the live user holding a phone number.
type PhoneLookup interface {
	GetByPhone(ctx context.Context, phone string) (model.User, error)
}

type CustomerGetter interface {
	GetByID(ctx context.Context, id uint64) (model.Customer, error)
}

// MergeService folds guest customers into registered users.
type MergeService struct {
	store     MergeStore
	users     PhoneLookup
	customers CustomerGetter
	events    EventPublisher
	log       zerolog.Logger
}

func NewMergeService(store MergeStore, users PhoneLookup, customers CustomerGetter, events EventPublisher, log zerolog.Logger) *MergeService {
	if events == nil {
		events = NopPublisher{}
	}
	return &MergeService{
		store:     store,
		users:     users,
		customers: customers,
		events:    events,
		log:       log.With().Str("component", "merge").Logger(),
	}
}

// MergeCustomerToUser links a customer to phone.  With no user on that
// phone the customer simply claims it.  With a user and confirm unset the
// call only reports the match; with confirm set everything the customer owns
// moves to the user and the customer is soft-deleted.
func (s *MergeService) MergeCustomerToUser(ctx context.Context, customerID uint64, phone string, confirm bool) (model.MergeResult, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.MergeResult{}, notFound("customer %d not found", customerID)
		}
		return model.MergeResult{}, err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return model.MergeResult{}, validation("phone required")
	}

	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		err = s.store.ClaimPhone(ctx, customerID, phone)
		switch {
		case errors.Is(err, repository.ErrPhoneTaken):
			return model.MergeResult{}, conflict("phone %s is already used by another customer", phone)
		case errors.Is(err, repository.ErrNotFound):
			return model.MergeResult{}, notFound("customer %d not found", customerID)
		case err != nil:
			return model.MergeResult{}, err
		}
		return model.MergeResult{Merged: false}, nil
	}
	if err != nil {
		return model.MergeResult{}, err
	}

	uid := u.ID
	if !confirm {
		return model.MergeResult{Merged: false, UserID: &uid}, nil
	}
	res, err := s.store.TransferCustomerToUser(ctx, customerID, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.MergeResult{}, notFound("customer %d not found", customerID)
	}
	if err != nil {
		return model.MergeResult{}, err
	}
	s.log.Info().Uint64("customer_id", customerID).Uint64("user_id", u.ID).
		Int64("orders_moved", res.OrdersMoved).Int64("points_moved", res.PointsMoved).Msg("customer merged")
	emit(ctx, s.events, s.log, queue.CustomerMerged, mergedEvent(customerID, u.ID, res, "merge"))
	return res, nil
}

func mergedEvent(customerID, userID uint64, res model.MergeResult, source string) queue.CustomerMergedEvent {
	return queue.CustomerMergedEvent{
		CustomerID:        customerID,
		UserID:            userID,
		OrdersMoved:       res.OrdersMoved,
		TransactionsMoved: res.TransactionsMoved,
		PointsMoved:       res.PointsMoved,
		Source:            source,
	}
}
