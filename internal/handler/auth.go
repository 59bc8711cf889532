package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/service"
)

// AuthAPI is the part of service.AuthService used over HTTP.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (service.Session, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, userID uint64, refreshRaw string) error
	Profile(ctx context.Context, userID uint64) (model.User, error)
	UpdateProfile(ctx context.Context, userID uint64, in service.ProfileUpdate) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	base
	auth AuthAPI
}

func NewAuthHandler(auth AuthAPI, timeout time.Duration, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{base: newBase(timeout, log), auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=20"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type profileReq struct {
	FullName        *string `json:"full_name" validate:"omitempty,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=20"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User         `json:"user"`
	Access  tokenPart          `json:"access"`
	Refresh tokenPart          `json:"refresh"`
	Merge   *model.MergeResult `json:"merge,omitempty"`
}

func sessionResp(s service.Session) authResp {
	return authResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
		Merge:   s.Merge,
	}
}

// Register creates a CUSTOMER account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.auth.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(sess))
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(sess))
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req) // an empty body is fine when a bearer is present
	uid, _ := getUserID(c)

	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.auth.Logout(ctx, uid, req.RefreshToken); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Profile returns the caller's account.
func (h *AuthHandler) Profile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.auth.Profile(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.auth.UpdateProfile(ctx, uid, service.ProfileUpdate{
		FullName:        req.FullName,
		Phone:           req.Phone,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Me echoes the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": uid,
		"role":    middleware.Role(c),
	})
}
