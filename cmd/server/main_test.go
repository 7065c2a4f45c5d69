package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/auth"
)

func TestRouter_PublicAndAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(handlers{}, auth.NewJWTService("secret", "", 1), "*", zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/admin/backfill"},
		{http.MethodPost, "/api/v1/admin/broadcasts/00000000-0000-0000-0000-000000000001/resend"},
		{http.MethodGet, "/api/v1/admin/districts/audit"},
		{http.MethodPost, "/api/v1/admin/districts/apply"},
		{http.MethodPost, "/api/v1/admin/districts/audit/export"},
		{http.MethodPost, "/api/v1/admin/event-requests/00000000-0000-0000-0000-000000000001/link"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}

	routes := map[string]bool{}
	for _, ri := range r.Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/locations/resolve",
		"POST /api/v1/matches",
		"POST /api/v1/broadcasts",
		"GET /api/v1/broadcasts/:id",
	} {
		assert.True(t, routes[want], want)
	}
}
