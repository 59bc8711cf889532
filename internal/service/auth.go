package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/queue"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
	"github.com/iliyamo/coffee-backoffice/internal/utils"
)

// UserStore persists registered users.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (model.MergeResult, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, id uint64, p model.UserPatch) error
}

// TokenStore keeps the hashed refresh token of each user.  Consume must be
// atomic: a token redeems at most once.
type TokenStore interface {
	Issue(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Consume(ctx context.Context, tokenHash string) (uint64, error)
	RevokeUser(ctx context.Context, userID uint64) error
}

// AuthConfig holds token and hashing parameters.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// RegisterInput is a self-service sign-up.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// ProfileUpdate changes the caller's own profile.  NewPassword requires
// CurrentPassword.
type ProfileUpdate struct {
	FullName        *string
	Phone           *string
	CurrentPassword string
	NewPassword     string
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
	// Merge is set when registration absorbed a guest customer.
	Merge *model.MergeResult
}

// AuthService issues and rotates credentials.
type AuthService struct {
	cfg    AuthConfig
	users  UserStore
	tokens TokenStore
	events EventPublisher
	log    zerolog.Logger
}

func NewAuthService(cfg AuthConfig, users UserStore, tokens TokenStore, events EventPublisher, log zerolog.Logger) *AuthService {
	if events == nil {
		events = NopPublisher{}
	}
	return &AuthService{cfg: cfg, users: users, tokens: tokens, events: events, log: log.With().Str("component", "auth").Logger()}
}

// Register creates a CUSTOMER user and signs it in.  When the phone belongs
// to a guest customer, that customer is merged into the new user in the same
// transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return Session{}, validation("email/password required")
	}
	if len(in.Password) < utils.MinPasswordLen {
		return Session{}, validation("password must be at least %d characters", utils.MinPasswordLen)
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return Session{}, validation("password too long")
	}
	if err != nil {
		return Session{}, err
	}
	u := model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        trimmedOrNil(&in.Phone),
		Role:         model.RoleCustomer,
	}
	merged, err := s.users.Create(ctx, &u)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return Session{}, conflict("email already exists")
	case errors.Is(err, repository.ErrPhoneTaken):
		return Session{}, conflict("phone %s is already registered", *u.Phone)
	case err != nil:
		return Session{}, err
	}

	sess, err := s.issue(ctx, u.ID)
	if err != nil {
		return Session{}, err
	}
	if merged.Merged {
		sess.Merge = &merged
		s.log.Info().Uint64("user_id", u.ID).Uint64("customer_id", merged.CustomerID).Int64("orders_moved", merged.OrdersMoved).
			Int64("points_moved", merged.PointsMoved).Msg("guest customer merged on registration")
		emit(ctx, s.events, s.log, queue.CustomerMerged, mergedEvent(merged.CustomerID, u.ID, merged, "register"))
	}
	return sess, nil
}

// Login verifies credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, validation("email/password required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, unauthorized("invalid credentials")
	}
	return s.issue(ctx, u.ID)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, validation("refresh_token required")
	}
	uid, err := s.tokens.Consume(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid refresh")
	}
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, uid)
}

// Logout revokes the presented refresh token, or every session of userID
// when no token is given.
func (s *AuthService) Logout(ctx context.Context, userID uint64, refreshRaw string) error {
	refreshRaw = strings.TrimSpace(refreshRaw)
	if refreshRaw != "" {
		_, err := s.tokens.Consume(ctx, utils.HashRefreshRaw(refreshRaw))
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized("invalid refresh token")
		}
		return err
	}
	if userID == 0 {
		return validation("provide Authorization header or refresh_token")
	}
	return s.tokens.RevokeUser(ctx, userID)
}

// Profile returns the caller's user row.
func (s *AuthService) Profile(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return u, notFound("user %d not found", userID)
	}
	return u, err
}

// UpdateProfile changes name, phone and password.  A password change
// requires the current password; a phone change is checked against both
// identity tables.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, in ProfileUpdate) (model.User, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return u, err
	}
	var p model.UserPatch
	if in.FullName != nil {
		n := strings.TrimSpace(*in.FullName)
		p.FullName = &n
	}
	if in.Phone != nil {
		ph := strings.TrimSpace(*in.Phone)
		p.Phone = &ph
	}
	if in.NewPassword != "" {
		if in.CurrentPassword == "" || !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
			return model.User{}, validation("current password is incorrect")
		}
		if len(in.NewPassword) < utils.MinPasswordLen {
			return model.User{}, validation("password must be at least %d characters", utils.MinPasswordLen)
		}
		hash, err := utils.HashPassword(in.NewPassword, s.cfg.BcryptCost)
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return model.User{}, validation("password too long")
		}
		if err != nil {
			return model.User{}, err
		}
		p.PasswordHash = &hash
	}
	if err := s.users.Update(ctx, userID, p); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return model.User{}, conflict("phone %s is already in use", *p.Phone)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, notFound("user %d not found", userID)
		}
		return model.User{}, err
	}
	return s.Profile(ctx, userID)
}

func (s *AuthService) issue(ctx context.Context, userID uint64) (Session, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.Issue(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}
