package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/cctp_executor/internal/api/routes"
	"github.com/rail-service/cctp_executor/internal/infrastructure/cache"
	"github.com/rail-service/cctp_executor/internal/infrastructure/config"
	"github.com/rail-service/cctp_executor/internal/infrastructure/di"
	"github.com/rail-service/cctp_executor/pkg/graceful"
	"github.com/rail-service/cctp_executor/pkg/logger"
	"github.com/rail-service/cctp_executor/pkg/tracing"
)

// @title CCTP Executor Relay API
// @version 1.0
// @description Quotes and tracks executor-relayed USDC transfers over CCTP.
// @BasePath /api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
		Version:      routes.Version,
	}
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Connect to Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := di.NewContainer(startCtx, cfg, redisClient, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	router := routes.SetupRoutes(container)

	if cfg.Watcher.Enabled {
		if err := container.Watcher.Start(); err != nil {
			log.Fatal("Failed to start transfer watcher", "error", err)
		}
	} else {
		log.Info("Transfer watcher disabled in configuration")
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"network", cfg.Network,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, log)
	if cfg.Watcher.Enabled {
		shutdown.Register("transfer_watcher", graceful.ShutdownFunc(func(context.Context) error {
			container.Watcher.Stop()
			return nil
		}))
	}
	shutdown.Register("routes", graceful.ShutdownFunc(container.Routes.Wait))
	shutdown.Register("chain_rpc", graceful.ShutdownFunc(func(context.Context) error {
		container.Close()
		return nil
	}))
	shutdown.Register("redis", graceful.ShutdownFunc(func(context.Context) error {
		return redisClient.Close()
	}))
	shutdown.Register("tracing", graceful.ShutdownFunc(tracingShutdown))

	shutdown.WaitForShutdown()
}
