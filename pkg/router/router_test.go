package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/di"
	"digital-clone/frontend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("VAULT_ADDR", "")

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(backend.Close)

	cfg := config.Load()
	cfg.Backend.URL = backend.URL
	cfg.Session.Store = "memory"
	cfg.Security.AllowedOrigins = []string{"https://app.example"}
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Observability.TracingEnable = false
	cfg.GRPC.Enabled = false

	container, err := di.New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	r := New(container)
	r.SetupRoutes()
	return r
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthReflectsBackend(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "not checked yet")

	r.Container.Health.RunChecks(context.Background())
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api-backend")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/health/details", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "active_connections")
}

func TestPagesRunSessionMiddleware(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/clones", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), r.Config.Session.CookieName+"=")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign in")
}

func TestUnknownAudioIsNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/audio/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSOnlyForAllowedOrigins(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://app.example")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAndDocs(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, r.Config.Observability.MetricsPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docs/backend.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}
