package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheers/cheers-api/internal/config"
	"github.com/cheers/cheers-api/internal/domain/admin"
	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/domain/feed"
	"github.com/cheers/cheers-api/internal/domain/leaderboard"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/jwt"
	"github.com/cheers/cheers-api/internal/pkg/response"
)

type testServer struct {
	router chi.Router
	jwt    *jwt.Service
}

func newTestServer(t *testing.T, health func(ctx context.Context) map[string]string) *testServer {
	t.Helper()
	cfg := &config.Config{QuotaAllotment: 100, CheerMaxPoints: 100, RateLimitRPS: 100, RateLimitBurst: 100}
	st := newStores(cfg, nil)

	ledgerSvc := ledger.NewService(st.ledger, 100, time.Now)
	hub := feed.NewHub(nil)
	shopSvc := shop.NewService(st.shop, st.catalog, ledgerSvc)
	lb := leaderboard.NewService(ledgerSvc, nil, time.Now)

	h := handlers{
		ledger:      ledger.NewHandler(ledgerSvc),
		cheers:      cheer.NewHandler(cheer.NewService(st.cheers, ledgerSvc, hub, 100)),
		leaderboard: leaderboard.NewHandler(lb),
		shop:        shop.NewHandler(shopSvc),
		admin:       admin.NewHandler(admin.NewService(ledgerSvc, shopSvc, lb, st.audit)),
		feed:        feed.NewHandler(hub, nil),
	}

	if health == nil {
		health = healthCheck(nil, nil)
	}
	jwtSvc := jwt.NewService("test-secret", time.Hour)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	return &testServer{
		router: newRouter(cfg, h, middleware.Auth(jwtSvc), limiter, health),
		jwt:    jwtSvc,
	}
}

func (s *testServer) do(t *testing.T, method, path, account, role, body string) (int, response.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		token, err := s.jwt.GenerateAccessToken(account, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := s.do(t, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	degraded := newTestServer(t, func(context.Context) map[string]string {
		return map[string]string{"status": "degraded", "database": "unreachable"}
	})
	code, env = degraded.do(t, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, env.Success)
}

func TestAPIRequiresAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/me/balance", "/api/v1/cheers", "/api/v1/leaderboard", "/api/v1/shop/cart", "/api/admin/orders"} {
		code, _ := s.do(t, http.MethodGet, path, "", "", "")
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
}

func TestAdminRequiresAdminRole(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodGet, "/api/admin/orders", "alice", jwt.RoleMember, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/admin/orders", "root", jwt.RoleAdmin, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRecognitionEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/cheers", "alice", jwt.RoleMember, `{"to_account":"bob","points":25,"message":"great demo"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodGet, "/api/v1/me/balance", "bob", jwt.RoleMember, "")
	require.Equal(t, http.StatusOK, code)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, float64(25), data["available_points"])

	code, env = s.do(t, http.MethodGet, "/api/v1/leaderboard?window=all_time", "bob", jwt.RoleMember, "")
	require.Equal(t, http.StatusOK, code)
	board := env.Data.(map[string]interface{})
	entries := board["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].(map[string]interface{})["account_id"])
}
