package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rail-service/cctp_executor/internal/api/handlers"
	"github.com/rail-service/cctp_executor/internal/api/middleware"
	"github.com/rail-service/cctp_executor/internal/infrastructure/di"
)

// Version is set at build time
var Version = "dev"

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	healthHandler := handlers.NewHealthHandler(
		map[string]handlers.Pinger{"redis": container.Redis},
		container.ZapLog,
		Version,
		string(container.Network),
	)
	transferHandlers := handlers.NewTransferHandlers(
		container.Routes,
		container.Receipts,
		container.Network,
		container.ZapLog,
	)
	return NewRouter(container, healthHandler, transferHandlers)
}

// NewRouter wires middleware and endpoints around already-built handlers.
func NewRouter(container *di.Container, health *handlers.HealthHandler, transfers *handlers.TransferHandlers) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	// Health checks
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	{
		v1.GET("/routes", transfers.ListRoutes)
		v1.POST("/quotes", transfers.Quote)
		v1.GET("/transfers/:chain/:txid", transfers.GetTransfer)
		v1.POST("/transfers/:chain/:txid/track", transfers.TrackTransfer)
	}

	return router
}
