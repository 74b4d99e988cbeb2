// README: Router tests: auth gating, open endpoints, path ID validation.
package http_test

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	offhttp "offpeak/internal/http"
	"offpeak/internal/infra"
	"offpeak/internal/observability"
)

type stubVerifier struct {
	token *infra.AuthToken
	err   error
}

func (s *stubVerifier) VerifyToken(_ context.Context, _ string) (*infra.AuthToken, error) {
	return s.token, s.err
}

// newTestRouter builds the full router with nil services. Tests here
// only exercise paths that reject before any service call.
func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return offhttp.NewRouter(offhttp.RouterDeps{
		Verifier: verifier,
		Metrics:  observability.NewMetrics(),
		Log:      zap.NewNop(),
	})
}

func TestAPIRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("no token")})

	routes := []struct {
		method, path string
	}{
		{nethttp.MethodPost, "/api/trips/recommend"},
		{nethttp.MethodGet, "/api/trips/optimal-time"},
		{nethttp.MethodGet, "/api/recommendations"},
		{nethttp.MethodGet, "/api/recommendations/abc"},
		{nethttp.MethodPost, "/api/trips/start/abc"},
		{nethttp.MethodPost, "/api/trips/arrive/abc"},
		{nethttp.MethodGet, "/api/trips"},
		{nethttp.MethodGet, "/api/rewards/wallet"},
		{nethttp.MethodGet, "/api/rewards/transactions"},
		{nethttp.MethodGet, "/api/rewards/summary"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != nethttp.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("no token")})

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(nethttp.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != nethttp.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestPathIDsAreValidatedBeforeServiceCalls(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.AuthToken{UserID: "u1"}})

	// Malformed IDs must 400 without touching the (nil) services.
	routes := []struct {
		method, path string
	}{
		{nethttp.MethodPost, "/api/trips/start/not-an-id"},
		{nethttp.MethodPost, "/api/trips/arrive/not-an-id"},
		{nethttp.MethodGet, "/api/recommendations/not-an-id"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != nethttp.StatusBadRequest {
			t.Errorf("%s %s = %d, want 400", rt.method, rt.path, w.Code)
		}
	}
}

func TestRecommendRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.AuthToken{UserID: "u1"}})

	req := httptest.NewRequest(nethttp.MethodPost, "/api/trips/recommend", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != nethttp.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", w.Code)
	}
}
