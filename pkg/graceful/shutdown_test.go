package graceful

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rail-service/cctp_executor/pkg/logger"
)

func TestShutdownOrder(t *testing.T) {
	var order []string
	record := func(name string, err error) ShutdownFunc {
		return func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, name)
			return err
		}
	}

	sm := NewShutdownManager(nil, logger.NewNop()).WithTimeout(time.Second)
	sm.Register("watcher", record("watcher", nil))
	sm.Register("routes", record("routes", errors.New("pings still running")))
	sm.Register("redis", record("redis", nil))

	sm.Shutdown()
	assert.Equal(t, []string{"watcher", "routes", "redis"}, order, "a failing component doesn't stop the rest")
}

func TestShutdownStopsServer(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.NotFoundHandler())
	srv.Start()
	defer srv.Close()

	sm := NewShutdownManager(srv.Config, logger.NewNop())
	sm.Shutdown()

	_, err := http.Get(srv.URL)
	assert.Error(t, err)
}
