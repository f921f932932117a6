package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachmap/reachmap/internal/api/middleware"
	"github.com/reachmap/reachmap/internal/api/models"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(5))(http.HandlerFunc(okHandler))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: 30 * time.Second,
	})(http.HandlerFunc(okHandler))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "192.168.1.2:12345"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "application/problem+json", last.Header().Get("Content-Type"))
	assert.Equal(t, "30", last.Header().Get("Retry-After"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/test", problem.Instance)
}

func TestRateLimitByIP_DifferentIPsIndependent(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(1))(http.HandlerFunc(okHandler))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, addr)
	}
}

func TestRateLimit_ZeroDisables(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.PerMinute(0))(http.HandlerFunc(okHandler))

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitByWorkspace_KeysByURLParam(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/v1/workspaces/{workspaceId}", func(r chi.Router) {
		r.With(middleware.RateLimitByWorkspace(middleware.PerMinute(1))).Post("/build", okHandler)
	})

	send := func(id string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/workspaces/"+id+"/build", http.NoBody)
		req.RemoteAddr = "10.0.0.9:1"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("ws_a"))
	assert.Equal(t, http.StatusTooManyRequests, send("ws_a"))
	assert.Equal(t, http.StatusOK, send("ws_b"), "same IP, other workspace")
}
