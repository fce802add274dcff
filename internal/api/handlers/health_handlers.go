package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a dependency the service cannot serve without
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	deps      map[string]Pinger
	logger    *zap.Logger
	version   string
	network   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps map[string]Pinger, logger *zap.Logger, version, network string) *HealthHandler {
	return &HealthHandler{
		deps:      deps,
		logger:    logger,
		version:   version,
		network:   network,
		startTime: time.Now(),
	}
}

// Health handles the liveness probe
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": h.version,
		"network": h.network,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready handles the readiness probe
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	statusCode := http.StatusOK
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			statusCode = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	status := "ready"
	if statusCode != http.StatusOK {
		status = "not_ready"
		h.logger.Warn("Readiness check failed", zap.Any("checks", checks))
	}
	c.JSON(statusCode, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
