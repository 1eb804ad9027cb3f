package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	httpMetrics "toolAdvisor/app/echo-server/metrics"
	"toolAdvisor/app/echo-server/router"
	"toolAdvisor/business/analytics"
	"toolAdvisor/business/experiment"
	"toolAdvisor/business/recommendation"
	"toolAdvisor/internal/middleware"
	psqlRepo "toolAdvisor/internal/repository/postgres"
	redisRepo "toolAdvisor/internal/repository/redis"
	"toolAdvisor/internal/rest"
	"toolAdvisor/pkg/cache"
	"toolAdvisor/pkg/config"
	"toolAdvisor/pkg/database"
	redisDB "toolAdvisor/pkg/database/redis"
	"toolAdvisor/pkg/logger"
	"toolAdvisor/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment, logger.WithLevel(cfg.Log.Level), logger.WithFormat(cfg.Log.Format))
	logger.Info("Starting Tool Advisor", "version", cfg.App.Version)

	engineCfg := recommendation.DefaultConfig()
	if err := config.LoadYAML(cfg.Engine.ConfigFile, &engineCfg); err != nil {
		logger.Fatal("Failed to load engine config", "error", err)
	}

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := database.ClosePostgres(db); err != nil {
			logger.Error("Database close error", "error", err)
		}
	}()

	logger.Info("Database connected successfully")

	// Init metrics
	metrics.Init()
	httpMetrics.Init()

	// Init repo
	toolRepo := psqlRepo.NewToolRepository(db)
	modelRepo := psqlRepo.NewModelStateRepository(db)
	experimentRepo := psqlRepo.NewExperimentRepository(db)
	eventRepo := psqlRepo.NewUsageEventRepository(db)
	profileRepo := psqlRepo.NewUserProfileRepository(db)

	// Cache levels: redis when configured, an in-process LRU otherwise
	var l2 cache.Tier
	if cfg.Redis.Enabled() {
		client, err := redisDB.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer func() {
			if err := redisDB.CloseRedisClient(client); err != nil {
				logger.Error("Redis close error", "error", err)
			}
		}()
		l2 = redisRepo.NewCacheStore(client)
		logger.Info("Redis connected successfully")
	} else {
		lru, err := cache.NewLRUTier("l2", cfg.Engine.L2Size)
		if err != nil {
			logger.Fatal("Failed to create l2 cache", "error", err)
		}
		l2 = lru
	}

	var l3 cache.Tier
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.Engine.L3Enabled {
		l3Repo := psqlRepo.NewCacheRepository(db)
		l3Repo.StartPurge(bgCtx, engineCfg.Cache.CleanupInterval)
		l3 = l3Repo
	}

	// Init service
	assigner, err := experiment.NewAssigner(engineCfg.Experiments, experimentRepo)
	if err != nil {
		logger.Fatal("Invalid experiment config", "error", err)
	}
	if err := assigner.Reload(bgCtx); err != nil {
		logger.Warn("Experiment variants not loaded", "error", err)
	}

	dispatcher := analytics.NewDispatcher(eventRepo, engineCfg.Analytics)

	engine, err := recommendation.NewEngine(engineCfg, recommendation.Dependencies{
		Tools:     toolRepo,
		ModelRepo: modelRepo,
		Analytics: dispatcher,
		Variants:  assigner,
		L2:        l2,
		L3:        l3,
	})
	if err != nil {
		logger.Fatal("Invalid engine config", "error", err)
	}
	if err := engine.Start(bgCtx); err != nil {
		logger.Fatal("Failed to start engine", "error", err)
	}

	// Init handler
	recoHandler := rest.NewRecommendationHandler(engine, profileRepo).WithAllowedOrigins(cfg.Server.AllowOrigins)
	healthHandler := rest.NewHealthHandler(engine)
	adminHandler := rest.NewAdminHandler(engine, assigner)
	profileHandler := rest.NewProfileHandler(profileRepo, engine)
	toolHandler := rest.NewToolHandler(toolRepo, engine)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.TraceID())
	e.Use(middleware.HTTPMetrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Auth middleware
	authRequired := middleware.AuthMiddleware(cfg.JWT.SecretKey)

	// Setup routes
	api := e.Group("/api/v1")
	router.SetHealthRoutes(e, api, healthHandler)
	router.SetRecommendationRoutes(api, recoHandler, authRequired)
	router.SetToolRoutes(api, toolHandler, authRequired)
	router.SetProfileRoutes(api, profileHandler, authRequired)
	router.SetAdminRoutes(api, adminHandler, toolHandler, authRequired)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Engine persists the model before analytics drains
	if err := engine.Close(ctx); err != nil {
		logger.Error("Engine shutdown error", "error", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		logger.Error("Analytics shutdown error", "error", err)
	}
	stopBackground()

	logger.Info("Server stopped")
}
