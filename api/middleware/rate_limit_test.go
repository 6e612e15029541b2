package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

func TestRateLimitBlocksPerSession(t *testing.T) {
	mr := miniredis.RunT(t)
	store := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	policy := NewRateLimitPolicy("checkout", time.Minute, 0, 2)

	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req = req.WithContext(WithSessionID(req.Context(), session))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send("a"); code != http.StatusNoContent {
		t.Fatalf("first request: %d", code)
	}
	if code := send("a"); code != http.StatusNoContent {
		t.Fatalf("second request: %d", code)
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("b"); code != http.StatusNoContent {
		t.Fatalf("other session should pass, got %d", code)
	}

	mr.FastForward(2 * time.Minute)
	if code := send("a"); code != http.StatusNoContent {
		t.Fatalf("window should reset, got %d", code)
	}
}

type failingLimiter struct{}

func (failingLimiter) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return false, 0, context.DeadlineExceeded
}

func TestRateLimitSurfacesStoreErrors(t *testing.T) {
	policy := NewRateLimitPolicy("lookup", time.Minute, 5, 0)
	handler := RateLimit(policy, failingLimiter{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	called := false
	handler := RateLimit(NewRateLimitPolicy("off", 0, 0, 0), failingLimiter{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected pass through")
	}
}
