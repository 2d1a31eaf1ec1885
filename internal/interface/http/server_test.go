package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/interface/http/handlers"
	"github.com/learnhub/completion-core/pkg/logger"
)

func newTestServer(t *testing.T, cfg Config, checks map[string]handlers.CheckFunc) *Server {
	t.Helper()
	readiness := handlers.NewReadiness("v1.2.3", time.Second)
	for name, check := range checks {
		readiness.Add(name, check)
	}
	return NewServer(cfg, readiness, logger.Discard())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Liveness(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec := get(t, s.Routes(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body livenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "v1.2.3", body.Version)
}

func TestServer_Readiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all checks pass", func(t *testing.T) {
		s := newTestServer(t, DefaultConfig(), map[string]handlers.CheckFunc{"postgres": ok, "redis": ok})

		rec := get(t, s.Routes(), "/readyz")

		require.Equal(t, http.StatusOK, rec.Code)
		var status handlers.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Ready)
		assert.Len(t, status.Checks, 2)
	})

	t.Run("failing dependency", func(t *testing.T) {
		s := newTestServer(t, DefaultConfig(), map[string]handlers.CheckFunc{"postgres": ok, "redis": down})

		rec := get(t, s.Routes(), "/readyz")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var status handlers.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.Ready)
		assert.Equal(t, "unready: redis", status.Message)
		assert.Equal(t, "connection refused", status.Checks["redis"].Message)
		assert.True(t, status.Checks["postgres"].Ready)
	})
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec := get(t, s.Routes(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec := get(t, s.Routes(), "/certificates")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	h := newTestServer(t, cfg, nil).Routes()

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/healthz").Code)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := newTestServer(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, "ops-http", s.String())
}
