package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/candidates-sim/internal/api"
	"github.com/stitts-dev/candidates-sim/internal/api/handlers"
	"github.com/stitts-dev/candidates-sim/internal/scenario"
	"github.com/stitts-dev/candidates-sim/internal/services"
	"github.com/stitts-dev/candidates-sim/internal/store"
	"github.com/stitts-dev/candidates-sim/pkg/config"
	"github.com/stitts-dev/candidates-sim/pkg/database"
	"github.com/stitts-dev/candidates-sim/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runStore := store.New(db.DB)
	if err := runStore.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	healthChecks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Connect to Redis. The service still runs uncached without it.
	var cache services.Cache
	redisClient, err := services.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Warnf("Redis unavailable, results will not be cached: %v", err)
	} else {
		defer redisClient.Close()
		cache = services.NewCacheService(redisClient)
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	extra := map[string]scenario.Definition{}
	if cfg.ScenarioDir != "" {
		extra, err = scenario.LoadDir(cfg.ScenarioDir)
		if err != nil {
			log.Fatalf("Failed to load scenarios: %v", err)
		}
		log.WithField("scenarios", scenario.Names(extra)).Info("Loaded scenario files")
	}

	hub := services.NewProgressHub(log)
	go hub.Run()
	defer hub.Stop()

	simulationService := services.NewSimulationService(runStore, cache, hub, services.SimulationSettings{
		DefaultSeasons: cfg.DefaultSeasons,
		MaxSeasons:     cfg.MaxSeasons,
		Workers:        cfg.SimulationWorkers,
		CacheTTL:       cfg.CacheTTL,
		Model:          cfg.GameModel(),
	}, extra, log)

	router := api.NewRouter(cfg, api.Dependencies{
		Simulations:  simulationService,
		Hub:          hub,
		HealthChecks: healthChecks,
		Logger:       log,
	})

	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	// Monte Carlo runs are synchronous, so the write timeout is generous
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithService("candidates-api").Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
