package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/utils"
)

// Context keys set by Auth.  Handlers read them through UserID and Role.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// ErrNoCredentials means the request carried nothing to authenticate with.
var ErrNoCredentials = errors.New("missing credentials")

// Principal is the authenticated caller.
type Principal struct {
	UserID uint64
	Role   string
}

// Authenticator extracts a Principal from a request.  The strategy is chosen
// at startup from AUTH_MODE.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// JWTAuthenticator accepts "Authorization: Bearer <access token>".
type JWTAuthenticator struct {
	Secret string
}

func (a JWTAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return Principal{}, ErrNoCredentials
	}
	uid, role, err := utils.ParseAccessToken(a.Secret, strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: uid, Role: role}, nil
}

// HeaderAuthenticator trusts X-User-Id and X-User-Role.  Development only;
// config refuses it in production.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	raw := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if raw == "" {
		return Principal{}, ErrNoCredentials
	}
	uid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || uid == 0 {
		return Principal{}, utils.ErrInvalidToken
	}
	role := strings.ToUpper(strings.TrimSpace(r.Header.Get("X-User-Role")))
	switch role {
	case "":
		role = model.RoleCustomer
	case model.RoleRoot, model.RoleAdmin, model.RoleStaff, model.RoleCustomer:
	default:
		return Principal{}, utils.ErrInvalidToken
	}
	return Principal{UserID: uid, Role: role}, nil
}

// Auth rejects requests without a valid principal and stores the caller's id
// and role in the echo context.
func Auth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := a.Authenticate(c.Request())
			if errors.Is(err, ErrNoCredentials) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

// OptionalAuth sets the principal when the request carries a valid one and
// otherwise lets the request through anonymously.
func OptionalAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p, err := a.Authenticate(c.Request()); err == nil {
				setPrincipal(c, p)
			}
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, p Principal) {
	c.Set(ctxUserID, p.UserID)
	c.Set(ctxRole, p.Role)
}

// UserID returns the authenticated user id, if any.
func UserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(ctxUserID).(uint64)
	return v, ok && v != 0
}

// Role returns the authenticated role or "".
func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}
