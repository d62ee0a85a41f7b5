package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/funnelforge-backend/internal/handlers"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/middleware"
)

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		Mode:        "release",
		Healthcheck: handlers.NewHealthcheckHandler(),
		Auth:        middleware.NewAuthMiddleware("test-secret", logger.NewNop()),
	})
}

func TestRouterServesHealthzThroughMiddlewareChain(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestRouterRejectsUnauthenticatedAPIRequests(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/regenerate/info", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
