package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coffee-backoffice/internal/middleware"
)

// RegisterStaff registers the till endpoints under /v1.  All routes require
// a valid token and the STAFF or ADMIN role.
func RegisterStaff(e *echo.Echo, h Handlers, o Options) {
	g := e.Group(
		"/v1",
		middleware.Auth(o.Authenticator),
		middleware.RequireRole(middleware.Staff...),
	)
	catalog := middleware.InvalidateCache(o.Cache, o.Redis, o.Log, groupCategories, groupProducts)
	// paying an order moves product sales counters
	sales := middleware.InvalidateCache(o.Cache, o.Redis, o.Log, groupProducts)

	// ---- Catalog ----
	g.POST("/categories", h.Catalog.CreateCategory, catalog)
	g.PATCH("/categories/:id", h.Catalog.UpdateCategory, catalog)
	g.DELETE("/categories/:id", h.Catalog.DeleteCategory, catalog)
	g.POST("/products", h.Catalog.CreateProduct, catalog)
	g.PATCH("/products/:id", h.Catalog.UpdateProduct, catalog)
	g.DELETE("/products/:id", h.Catalog.DeleteProduct, catalog)

	// ---- Orders ----
	g.POST("/orders", h.Orders.Create)
	g.GET("/orders", h.Orders.List)
	g.GET("/orders/:id", h.Orders.Get)
	g.PATCH("/orders/:id", h.Orders.Update, sales)
	g.POST("/orders/:id/settle-points", h.Orders.SettlePoints)

	// ---- Customers ----
	g.POST("/customers", h.Customers.Create)
	g.GET("/customers", h.Customers.List)
	g.GET("/customers/search", h.Customers.Search)
	g.GET("/customers/:id", h.Customers.Get)
	g.PATCH("/customers/:id", h.Customers.Update)
	g.PUT("/customers/:id", h.Customers.Update)
	g.DELETE("/customers/:id", h.Customers.Delete)
	g.POST("/customers/:id/merge-to-user", h.Customers.MergeToUser)

	// ---- Customer rewards ----
	g.GET("/customers/:id/rewards", h.Rewards.Points)
	g.GET("/customers/:id/rewards/history", h.Rewards.History)
	g.POST("/customers/:id/rewards/redeem", h.Rewards.Redeem)

	// ---- Uploads ----
	g.POST("/uploads", h.Uploads.Upload)
	g.GET("/uploads", h.Uploads.List)
	g.DELETE("/uploads/:id", h.Uploads.Delete)

	// ---- Contact ----
	g.GET("/admin/contact-messages", h.Contact.List)
	g.PATCH("/admin/contact-messages/:id", h.Contact.UpdateStatus)
}
