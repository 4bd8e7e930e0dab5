package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/middleware"
	"github.com/paystream-labs/paystream/common/queue"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/common/vault"
	"github.com/paystream-labs/paystream/webhook/internal/handlers"
	"github.com/paystream-labs/paystream/webhook/internal/ratelimit"
	"github.com/paystream-labs/paystream/webhook/internal/service"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, auth *middleware.AdminAuth) http.Handler {
	t.Helper()

	codec, err := vault.New(testMasterKey)
	require.NoError(t, err)

	logger := logging.New(slog.LevelError, "text")
	registry := verifier.DefaultRegistry()
	svc, err := service.NewIngestService(service.Config{
		Providers:   []string{"stripe"},
		Environment: "production",
	}, registry, codec, store.NewMemoryStore(), queue.NewMemoryQueue(4), logger)
	require.NoError(t, err)

	wh := handlers.NewWebhookHandler(svc, registry, &ratelimit.NoOpRateLimiter{}, logger)
	ah := handlers.NewAdminHandler(svc, logger)

	return NewRouter(wh, ah, auth)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := newTestRouter(t, middleware.NewAdminAuth("test-secret"))

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, middleware.NewAdminAuth("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_WebhookRejectsGet(t *testing.T) {
	router := newTestRouter(t, middleware.NewAdminAuth("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	auth := middleware.NewAdminAuth("test-secret")
	router := newTestRouter(t, auth)

	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := auth.IssueToken("ops@example.com", time.Minute)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_AdminRejectsForeignToken(t *testing.T) {
	router := newTestRouter(t, middleware.NewAdminAuth("test-secret"))

	other := middleware.NewAdminAuth("different-secret")
	token, err := other.IssueToken("ops@example.com", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	router := newTestRouter(t, middleware.NewAdminAuth("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
