package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apphttp "sfr_ops_backend/internal/http"
	"sfr_ops_backend/platform/httpkit"
	"sfr_ops_backend/platform/logger"
	"sfr_ops_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct{ origins []string }

func (c testConfig) GetHTTPAddr() string        { return ":0" }
func (c testConfig) GetCORSOrigins() []string   { return c.origins }
func (c testConfig) GetJWTAccessSecret() string { return "secret" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "open") })
	ctx.Protected.GET("/secure", func(c *gin.Context) { c.String(http.StatusOK, "secure") })
}

func newApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config:  testConfig{origins: []string{"https://ops.example"}},
		Logger:  logger.Discard(),
		Health:  health,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Modules: []apphttp.Module{echoModule{}},
	}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthReflectsDatabase(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(New(newApp(pinger{})), "/api/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(New(newApp(pinger{err: errors.New("down")})), "/api/health").Code)
}

func TestModulesAreMountedBehindAuth(t *testing.T) {
	engine := New(newApp(pinger{}))

	w := get(engine, "/api/v1/echo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(httpkit.HeaderRequestID))

	assert.Equal(t, http.StatusUnauthorized, get(engine, "/api/v1/secure").Code)
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	engine := New(newApp(pinger{}))
	get(engine, "/api/v1/echo")

	w := get(engine, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "/api/v1/echo"))
}

func TestCORSConfig(t *testing.T) {
	cfg := corsConfig([]string{"*"})
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)

	cfg = corsConfig([]string{"https://ops.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://ops.example"}, cfg.AllowOrigins)
}
