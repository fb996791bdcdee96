package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/deptconnect/portal/internal/config"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", CORSOrigins: []string{"http://localhost:3000"}},
		Backend:   config.BackendConfig{Driver: config.DriverMemory, DeploymentID: "cse"},
		JWT:       config.JWTConfig{Secret: "main-test-secret-0123456789abcdefgh", SessionTTL: time.Hour},
		RateLimit: config.RateLimitConfig{Enabled: true, RPS: 100, Burst: 100, Window: time.Second},
	}
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig([]string{"*"})
	require.True(t, all.AllowAllOrigins)
	require.Empty(t, all.AllowOrigins)
	require.NoError(t, all.Validate())

	some := corsConfig([]string{"https://portal.dept.test"})
	require.False(t, some.AllowAllOrigins)
	require.Equal(t, []string{"https://portal.dept.test"}, some.AllowOrigins)
	require.NoError(t, some.Validate())
}

func TestCorsRefusesForeignOrigin(t *testing.T) {
	cfg := memoryConfig()
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	r := newRouter(cfg, a, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/view", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/view", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildAppMemory(t *testing.T) {
	cfg := memoryConfig()
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.Eventually(t, func() bool { return a.ctrl.State().Status == session.StatusSignedOut }, time.Second, 5*time.Millisecond)

	r := newRouter(cfg, a, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"signedOut"`)

	// writes need an active session
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/attachments", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// the in-memory driver keeps attachments in process
	require.NotNil(t, a.files)
}

func TestBuildAppUsesRedisWhenConfigured(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	cfg := memoryConfig()
	host, port, _ := strings.Cut(m.Addr(), ":")
	cfg.Redis = config.RedisConfig{Host: host, Port: port}
	cfg.RateLimit.Redis = true
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.redis)
	require.Contains(t, a.checks, "redis")

	r := newRouter(cfg, a, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, m.Keys())
}

func TestBuildAppSkipsUnreachableRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	addr := m.Addr()
	m.Close()

	cfg := memoryConfig()
	host, port, _ := strings.Cut(addr, ":")
	cfg.Redis = config.RedisConfig{Host: host, Port: port}
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.Nil(t, a.redis)
	require.NotContains(t, a.checks, "redis")

	w := httptest.NewRecorder()
	newRouter(cfg, a, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMissingConfigServesUnavailable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Backend.DeploymentID = ""
	_, cause := buildApp(context.Background(), cfg)
	require.True(t, errs.IsConfig(cause))

	a := unavailableApp(cause)
	defer a.Close()
	r := newRouter(cfg, a, cause)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "service unavailable")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(`{"email":"a@dept.test","password":"secret1"}`)))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnreachableStoreServesUnavailable(t *testing.T) {
	cfg := memoryConfig()
	cause := errs.Store(errs.CodeNetwork, "document store unreachable", errors.New("server selection timeout"))
	a := unavailableApp(cause)
	defer a.Close()
	r := newRouter(cfg, a, cause)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"banner":"service unavailable"`)
	require.Contains(t, w.Body.String(), `"unavailable":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(`{"text":"hi"}`)))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
