package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/httpserver"
	"github.com/dmitrymomot/retailplan/pkg/logger"
)

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, h http.Handler) (int, report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var got report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return rec.Code, got
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		code, got := probe(t, httpserver.HealthCheckHandler(nil, 0, nil))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "alive", got.Status)
	})

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(logger.Discard(), time.Second, map[string]httpserver.HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return nil },
		})
		code, got := probe(t, h)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", got.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, got.Checks)
	})

	t.Run("failing check", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(logger.Discard(), time.Second, map[string]httpserver.HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"nats":     func(context.Context) error { return errors.New("disconnected") },
		})
		code, got := probe(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", got.Status)
		assert.Equal(t, "failed", got.Checks["nats"])
		assert.Equal(t, "ok", got.Checks["postgres"])
	})

	t.Run("checks see the deadline", func(t *testing.T) {
		t.Parallel()
		h := httpserver.HealthCheckHandler(logger.Discard(), 10*time.Millisecond, map[string]httpserver.HealthCheck{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
		code, _ := probe(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})
}
