// Package main runs the fleet dashboard HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bbus-fleet/backend/config"
	"github.com/bbus-fleet/backend/internal/accesscards"
	"github.com/bbus-fleet/backend/internal/applications"
	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/auth"
	"github.com/bbus-fleet/backend/internal/buses"
	"github.com/bbus-fleet/backend/internal/dictionary"
	"github.com/bbus-fleet/backend/internal/directory"
	"github.com/bbus-fleet/backend/internal/journeys"
	"github.com/bbus-fleet/backend/internal/middleware"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/internal/organizations"
	"github.com/bbus-fleet/backend/internal/reconcile"
	"github.com/bbus-fleet/backend/internal/routes"
	"github.com/bbus-fleet/backend/internal/sources"
	"github.com/bbus-fleet/backend/internal/timeslots"
	"github.com/bbus-fleet/backend/pkg/database"
	"github.com/bbus-fleet/backend/pkg/metrics"
	"github.com/bbus-fleet/backend/pkg/redis"
	"github.com/bbus-fleet/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Directory cache (optional)
	var (
		orgCache    directory.OrganizationCache
		invalidator organizations.Invalidator
	)
	if cfg.Redis.Addr != "" && cfg.Redis.CacheTTL > 0 {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("directory cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			cache := directory.NewRedisOrganizationCache(rdb, cfg.Redis.CacheTTL, logger)
			orgCache, invalidator = cache, cache
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	identity := cfg.Identity.ServiceIdentity()
	if identity.DefaultOrganizationID == uuid.Nil {
		logger.Warn("DEFAULT_CLIENT_ID not set, bus and card dictionary syncs will fail")
	}

	// Repositories
	auditRepo := audit.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	routeRepo := routes.NewRepository(pool)
	busRepo := buses.NewRepository(pool)
	cardRepo := accesscards.NewRepository(pool)
	appRepo := applications.NewRepository(pool)
	journeyRepo := journeys.NewRepository(pool)

	// Core
	dir := directory.New(directory.NewRepository(pool), orgCache, logger)
	reconciler := reconcile.New(reconcile.NewPgTransactor(pool), cfg.Orders.Location, m, logger)
	synchronizer := dictionary.New(dictionary.NewPgTransactor(pool), dir, m, logger)
	slotService := timeslots.NewService(timeslots.NewPgTransactor(pool), nil)

	// Handlers
	sourcesHandler := sources.NewHandler(sources.Deps{
		Identity:      identity,
		Location:      cfg.Orders.Location,
		Reconciler:    reconciler,
		Dictionary:    synchronizer,
		TimeSlots:     slotService,
		Directory:     dir,
		Journeys:      journeys.NewEngine(journeyRepo),
		Routes:        routeRepo,
		Cards:         cardRepo,
		Organizations: orgRepo,
		Logger:        logger,
	})
	orgHandler := organizations.NewHandler(orgRepo, invalidator, auditRepo, logger)
	routeHandler := routes.NewHandler(routeRepo, auditRepo, logger)
	busHandler := buses.NewHandler(busRepo, auditRepo, logger)
	cardHandler := accesscards.NewHandler(cardRepo, auditRepo, logger)
	appHandler := applications.NewHandler(appRepo, auditRepo, logger)
	journeyHandler := journeys.NewHandler(journeyRepo, cfg.Orders.Location, logger)
	auditHandler := audit.NewHandler(auditRepo)

	verifier := auth.NewSessionVerifier(cfg.Session.JWTSecret)
	keys := middleware.APIKeys{
		Private:      cfg.Sources.PrivateAPIKey,
		Public:       cfg.Sources.PublicAPIKey,
		MaxBodyBytes: cfg.Sources.MaxBodyBytes,
	}
	if keys.Private == "" && keys.Public == "" {
		logger.Warn("no webhook API keys configured, /sources rejects every request")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// Webhooks from the order system (API key)
	sourcesHandler.Register(
		router.Group("/sources", middleware.APIKey(keys, middleware.ScopeAny)),
		middleware.APIKey(keys, middleware.ScopePrivate),
	)

	// Dashboard API (session JWT; writes need admin or owner)
	api := router.Group("/api")
	api.Use(middleware.Session(verifier))
	api.Use(middleware.RequireWriteMethods(models.RoleAdmin, models.RoleOwner))
	{
		api.GET("/clients", orgHandler.List)
		api.POST("/clients", orgHandler.Create)
		api.GET("/clients/:id", orgHandler.Get)
		api.PATCH("/clients/:id", orgHandler.Update)
		api.DELETE("/clients/:id", orgHandler.Delete)

		api.GET("/routes", routeHandler.List)
		api.POST("/routes", routeHandler.Create)
		api.GET("/routes/:id", routeHandler.Get)
		api.PATCH("/routes/:id", routeHandler.Update)
		api.DELETE("/routes/:id", routeHandler.Delete)

		api.GET("/buses", busHandler.List)
		api.POST("/buses", busHandler.Create)
		api.GET("/buses/:id", busHandler.Get)
		api.PATCH("/buses/:id", busHandler.Update)
		api.DELETE("/buses/:id", busHandler.Delete)

		api.GET("/access-cards", cardHandler.List)
		api.POST("/access-cards", cardHandler.Create)
		api.GET("/access-cards/:id", cardHandler.Get)
		api.PATCH("/access-cards/:id", cardHandler.Update)
		api.DELETE("/access-cards/:id", cardHandler.Delete)

		api.GET("/applications", appHandler.List)
		api.POST("/applications", appHandler.Create)
		api.GET("/applications/:id", appHandler.Get)
		api.PATCH("/applications/:id", appHandler.Update)
		api.DELETE("/applications/:id", appHandler.Delete)

		api.GET("/journeys", journeyHandler.List)
		api.POST("/journeys", journeyHandler.Create)
		api.GET("/journeys/report.xlsx", journeyHandler.ReportXLSX)
		api.GET("/journeys/report.pdf", journeyHandler.ReportPDF)
		api.GET("/journeys/:id", journeyHandler.Get)

		api.GET("/logs", auditHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
