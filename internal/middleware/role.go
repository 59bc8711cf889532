package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// RequireRole aborts with 403 unless the caller's role is one of roles.
// ROOT passes every check.  Auth must run first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[model.RoleRoot] = true
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// Staff and Admin are the role sets used by the router.
var (
	Staff = []string{model.RoleStaff, model.RoleAdmin}
	Admin = []string{model.RoleAdmin}
)
