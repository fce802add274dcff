package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/api/handlers"
	"github.com/rail-service/cctp_executor/internal/domain/entities"
	"github.com/rail-service/cctp_executor/internal/domain/services/route"
	"github.com/rail-service/cctp_executor/internal/infrastructure/config"
	"github.com/rail-service/cctp_executor/internal/infrastructure/di"
	"github.com/rail-service/cctp_executor/pkg/logger"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	container := &di.Container{
		Config: &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"*"}, RateLimitPerMin: 100}},
		Logger: logger.NewNop(),
		ZapLog: zap.NewNop(),
	}
	health := handlers.NewHealthHandler(nil, zap.NewNop(), "test", "Testnet")
	transfers := handlers.NewTransferHandlers(route.NewSet(), nil, entities.NetworkTestnet, zap.NewNop())
	router := NewRouter(container, health, transfers)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/routes", http.StatusOK},
		{http.MethodPost, "/api/v1/quotes", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}
