package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterThrottlesPerAccount(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(account string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cheers", nil)
		req = req.WithContext(WithIdentity(req.Context(), account, "member"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusTooManyRequests, do("alice"))
	// Other accounts have their own bucket.
	assert.Equal(t, http.StatusOK, do("bob"))
}

func TestRateLimiterCleanupDropsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.getLimiter("alice")
	now = now.Add(time.Minute)
	rl.getLimiter("bob")

	now = now.Add(rl.idleTTL)
	rl.Cleanup()

	_, aliceKept := rl.limiters["alice"]
	_, bobKept := rl.limiters["bob"]
	assert.False(t, aliceKept)
	assert.True(t, bobKept)
}

func TestRateLimiterMutationsIgnoresReads(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Mutations(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string) int {
		req := httptest.NewRequest(method, "/api/v1/shop/checkout", nil)
		req = req.WithContext(WithIdentity(req.Context(), "alice", "member"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost))
	assert.Equal(t, http.StatusOK, do(http.MethodGet))
}
