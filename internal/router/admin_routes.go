package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
)

// RegisterAdmin registers ADMIN-only endpoints: reports, review moderation
// and destructive deletes.
func RegisterAdmin(e *echo.Echo, h Handlers, o Options) {
	g := e.Group(
		"/v1",
		middleware.Auth(o.Authenticator),
		middleware.RequireRole(middleware.Admin...),
	)
	reviews := middleware.InvalidateCache(o.Cache, o.Redis, o.Log, groupReviews)

	g.DELETE("/products/:id/hard", h.Catalog.HardDeleteProduct,
		middleware.InvalidateCache(o.Cache, o.Redis, o.Log, groupProducts))
	g.DELETE("/orders/:id", h.Orders.Delete)

	// ---- Reviews ----
	g.POST("/admin/reviews", h.Reviews.Create, reviews)
	g.GET("/admin/reviews", h.Reviews.List)
	g.GET("/admin/reviews/:id", h.Reviews.Get)
	g.PATCH("/admin/reviews/:id", h.Reviews.Update, reviews)
	g.PUT("/admin/reviews/:id", h.Reviews.Update, reviews)
	g.DELETE("/admin/reviews/:id", h.Reviews.Delete, reviews)

	// ---- Reports ----
	g.GET("/revenue/daily", h.Reports.Daily)
	g.GET("/revenue/range", h.Reports.Range)
	g.GET("/stats/dashboard", h.Reports.Dashboard)
	g.GET("/stats/sales", h.Reports.Sales)
	g.GET("/stats/top-products", h.Reports.TopProducts)
}
