package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/coffee-backoffice/internal/config"
	"github.com/iliyamo/coffee-backoffice/internal/database"
	"github.com/iliyamo/coffee-backoffice/internal/handler"
	"github.com/iliyamo/coffee-backoffice/internal/logger"
	"github.com/iliyamo/coffee-backoffice/internal/middleware"
	"github.com/iliyamo/coffee-backoffice/internal/queue"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
	"github.com/iliyamo/coffee-backoffice/internal/router"
	"github.com/iliyamo/coffee-backoffice/internal/service"
	"github.com/iliyamo/coffee-backoffice/internal/storage"
)

func main() {
	cfg := config.Load()
	format := cfg.LogFormat
	if format == "" {
		format = logger.DefaultFormat(cfg.Env)
	}
	log := logger.New(cfg.LogLevel, format)

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if cfg.DBMigrate {
		v, err := database.Migrate(db, cfg.DBName)
		if err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
		log.Info().Uint("version", v).Msg("schema up to date")
	}

	// redis is optional; without it caching and rate limiting are off
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn().Msg("redis unavailable, cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		pub := queue.NewPublisher(cfg.Events, log)
		defer pub.Close()
		events = pub
	}

	disk, err := storage.NewDisk(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Uploads.Dir).Msg("prepare upload dir")
	}

	// ---- repositories ----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	customers := repository.NewCustomerRepo(db)
	categories := repository.NewCategoryRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	rewardsRepo := repository.NewRewardRepo(db)
	reviews := repository.NewReviewRepo(db)
	uploads := repository.NewUploadRepo(db)

	// ---- services ----
	authSvc := service.NewAuthService(service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, users, tokens, events, log)
	rewardSvc := service.NewRewardService(rewardsRepo, log)
	orderSvc := service.NewOrderService(orders, products, users, customers, rewardSvc, events, log)
	customerSvc := service.NewCustomerService(customers, orders)
	mergeSvc := service.NewMergeService(repository.NewMergeRepo(db), users, customers, events, log)
	uploadSvc := service.NewUploadService(uploads, disk, products, cfg.Uploads.BaseURL, log)

	// ---- handlers ----
	t := cfg.RequestTimeout
	h := router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc, t, log),
		Catalog:   handler.NewCatalogHandler(service.NewCatalogService(categories, products), t, log),
		Orders:    handler.NewOrderHandler(orderSvc, t, log),
		Rewards:   handler.NewRewardHandler(rewardSvc, t, log),
		Customers: handler.NewCustomerHandler(customerSvc, mergeSvc, t, log),
		Reviews:   handler.NewReviewHandler(service.NewReviewService(reviews, users, customers), t, log),
		Reports:   handler.NewReportHandler(service.NewReportService(repository.NewReportRepo(db)), t, log),
		Uploads:   handler.NewUploadHandler(uploadSvc, t, log),
		Contact:   handler.NewContactHandler(service.NewContactService(repository.NewContactRepo(db), log), t, log),
	}

	var authn middleware.Authenticator = middleware.JWTAuthenticator{Secret: cfg.JWTSecret}
	if cfg.AuthMode == config.AuthModeHeader {
		log.Warn().Msg("AUTH_MODE=header: trusting X-User-Id and X-User-Role")
		authn = middleware.HeaderAuthenticator{}
	}

	metrics := middleware.NewMetrics()
	metrics.Registry().MustRegister(collectors.NewDBStatsCollector(db, cfg.DBName))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log, middleware.RateIdentity(authn)))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	if strings.HasPrefix(cfg.Uploads.BaseURL, "/") {
		e.Static(cfg.Uploads.BaseURL, disk.Dir())
	}
	router.Register(e, h, router.Options{
		Authenticator: authn,
		Cache:         config.LoadCacheConfig(),
		Redis:         rdb,
		Log:           log,
		Ready:         db,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Events.Enabled {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.Events, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("auth_mode", cfg.AuthMode).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
