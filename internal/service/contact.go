package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
)

type ContactStore interface {
	Create(ctx context.Context, m *model.ContactMessage) error
	GetByID(ctx context.Context, id uint64) (model.ContactMessage, error)
	List(ctx context.Context, f model.ContactFilter) (model.Page[model.ContactMessage], error)
	SetStatus(ctx context.Context, id uint64, status model.ContactStatus) error
}

// ContactInput is a contact form submission.
type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

const minContactMessage = 5

// ContactService is the inbox behind the public contact form.
type ContactService struct {
	store ContactStore
	log   zerolog.Logger
}

func NewContactService(store ContactStore, log zerolog.Logger) *ContactService {
	return &ContactService{store: store, log: log.With().Str("component", "contact").Logger()}
}

// Create records a message.  userID is the signed-in sender, if any.
func (s *ContactService) Create(ctx context.Context, in ContactInput, userID *uint64) (model.ContactMessage, error) {
	m := model.ContactMessage{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Message: strings.TrimSpace(in.Message),
		Status:  model.ContactNew,
		UserID:  userID,
	}
	switch {
	case m.Name == "":
		return m, validation("name is required")
	case !strings.Contains(m.Email, "@"):
		return m, validation("email must be a valid email")
	case utf8.RuneCountInString(m.Message) < minContactMessage:
		return m, validation("message must be at least %d characters", minContactMessage)
	}
	if p := strings.TrimSpace(in.Phone); p != "" {
		m.Phone = &p
	}
	if err := s.store.Create(ctx, &m); err != nil {
		return m, err
	}
	s.log.Info().Uint64("contact_id", m.ID).Bool("member", userID != nil).Msg("contact message received")
	return s.store.GetByID(ctx, m.ID)
}

// List pages through the inbox, newest first.
func (s *ContactService) List(ctx context.Context, f model.ContactFilter) (model.Page[model.ContactMessage], error) {
	f.Status = model.ContactStatus(strings.ToUpper(strings.TrimSpace(string(f.Status))))
	if f.Status != "" && !f.Status.Valid() {
		return model.Page[model.ContactMessage]{}, validation("invalid status %q", f.Status)
	}
	return s.store.List(ctx, f)
}

// SetStatus moves a message through NEW, IN_PROGRESS and RESOLVED.  Any
// transition is allowed so a message can be reopened.
func (s *ContactService) SetStatus(ctx context.Context, id uint64, status model.ContactStatus) (model.ContactMessage, error) {
	status = model.ContactStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return model.ContactMessage{}, validation("invalid status %q", status)
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ContactMessage{}, notFound("contact message %d not found", id)
		}
		return model.ContactMessage{}, err
	}
	return s.store.GetByID(ctx, id)
}
