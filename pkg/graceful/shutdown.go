package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rail-service/cctp_executor/pkg/logger"
)

const DefaultTimeout = 30 * time.Second

type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a function to Shutdowner
type ShutdownFunc func(ctx context.Context) error

func (f ShutdownFunc) Shutdown(ctx context.Context) error { return f(ctx) }

type named struct {
	name string
	s    Shutdowner
}

// ShutdownManager stops the HTTP server, then every registered component in
// registration order.
type ShutdownManager struct {
	server      *http.Server
	shutdowners []named
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// WithTimeout bounds the whole shutdown sequence.
func (sm *ShutdownManager) WithTimeout(timeout time.Duration) *ShutdownManager {
	sm.timeout = timeout
	return sm
}

func (sm *ShutdownManager) Register(name string, s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, named{name: name, s: s})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	sm.logger.Info("Shutting down gracefully...", "signal", sig.String())
	sm.Shutdown()
}

// Shutdown runs the shutdown sequence once. Component errors are logged and
// do not stop the remaining components.
func (sm *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for _, n := range sm.shutdowners {
		if err := n.s.Shutdown(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "component", n.name, "error", err)
			continue
		}
		sm.logger.Debug("Component stopped", "component", n.name)
	}

	sm.logger.Info("Shutdown complete")
}
