package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/config"
	"github.com/iliyamo/coffee-backoffice/internal/handler"
	"github.com/iliyamo/coffee-backoffice/internal/middleware"
)

// Cache groups.  A write route names the groups it invalidates.
const (
	groupCategories = "categories"
	groupProducts   = "products"
	groupReviews    = "reviews"
	groupRewards    = "rewards"
)

// Handlers is every HTTP handler the API exposes.
type Handlers struct {
	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Orders    *handler.OrderHandler
	Rewards   *handler.RewardHandler
	Customers *handler.CustomerHandler
	Reviews   *handler.ReviewHandler
	Reports   *handler.ReportHandler
	Uploads   *handler.UploadHandler
	Contact   *handler.ContactHandler
}

// Options carries the shared middleware dependencies.  A nil Redis disables
// response caching.
type Options struct {
	Authenticator middleware.Authenticator
	Cache         config.CacheConfig
	Redis         *redis.Client
	Log           zerolog.Logger
	Ready         handler.Pinger
}

// Register wires every route group onto e.
func Register(e *echo.Echo, h Handlers, o Options) {
	RegisterRoutes(e, o.Ready)
	RegisterAuth(e, h.Auth, o.Authenticator)
	RegisterPublic(e, h, o)
	RegisterMember(e, h.Rewards, o.Authenticator)
	RegisterStaff(e, h, o)
	RegisterAdmin(e, h, o)
}

// RegisterRoutes registers the health and readiness checks.
func RegisterRoutes(e *echo.Echo, ready handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", handler.Ready(ready))
	}
}

// RegisterAuth registers the session endpoints.  Register, login, refresh
// and logout are public; profile and /me need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn middleware.Authenticator) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout works with just the refresh token; a bearer token, when sent,
	// also revokes the caller's other sessions
	g.POST("/logout", a.Logout, middleware.OptionalAuth(authn))

	auth := e.Group("/v1", middleware.Auth(authn))
	auth.GET("/auth/profile", a.Profile)
	auth.PUT("/auth/profile", a.UpdateProfile)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated endpoints.  Browse responses
// are cached in redis per group.
func RegisterPublic(e *echo.Echo, h Handlers, o Options) {
	cache := func(group string) echo.MiddlewareFunc {
		return middleware.NewRedisCache(o.Cache, o.Redis, group)
	}
	e.GET("/v1/categories", h.Catalog.ListCategories, cache(groupCategories))
	e.GET("/v1/categories/:id", h.Catalog.GetCategory, cache(groupCategories))
	e.GET("/v1/products", h.Catalog.ListProducts, cache(groupProducts))
	e.GET("/v1/products/:id", h.Catalog.GetProduct, cache(groupProducts))
	e.GET("/v1/reviews", h.Reviews.ListPublic, cache(groupReviews))
	e.GET("/v1/rewards/offers", h.Rewards.Offers, cache(groupRewards))

	// a signed-in sender is recorded on the message
	e.POST("/v1/contact", h.Contact.Create, middleware.OptionalAuth(o.Authenticator))
}

// RegisterMember registers the caller's own loyalty endpoints.  Any
// authenticated role may use them.
func RegisterMember(e *echo.Echo, r *handler.RewardHandler, authn middleware.Authenticator) {
	g := e.Group("/v1/rewards", middleware.Auth(authn))
	g.GET("/points", r.Points)
	g.GET("/history", r.History)
	g.POST("/redeem", r.Redeem)
}
