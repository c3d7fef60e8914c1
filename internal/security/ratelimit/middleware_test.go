package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/turbomcp/turbomcp/internal/adapter/outbound/memory"
)

func staticIP(ip string) RemoteIPFunc {
	return func(*http.Request) string { return ip }
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	limiter := memory.NewRateLimiter()
	cfg := Config{Enabled: true, MaxRequests: 5, Window: time.Minute}
	handler := Middleware(limiter, cfg, staticIP("10.0.0.1"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	limiter := memory.NewRateLimiter()
	cfg := Config{Enabled: true, MaxRequests: 1, Window: time.Minute}
	handler := Middleware(limiter, cfg, staticIP("10.0.0.2"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("warm-up request status = %d, want 200", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	limiter := memory.NewRateLimiter()
	cfg := Config{Enabled: false, MaxRequests: 1, Window: time.Minute}
	handler := Middleware(limiter, cfg, staticIP("10.0.0.3"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 (rate limiting disabled)", i, rec.Code)
		}
	}
}

func TestMiddlewareKeysByIdentityOverIP(t *testing.T) {
	limiter := memory.NewRateLimiter()
	cfg := Config{Enabled: true, MaxRequests: 1, Window: time.Minute}
	handler := Middleware(limiter, cfg, staticIP("10.0.0.4"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1 = req1.WithContext(WithIdentity(req1.Context(), "user-a"))
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("user-a first request status = %d, want 200", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2 = req2.WithContext(WithIdentity(req2.Context(), "user-b"))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("user-b request (distinct identity, same IP) status = %d, want 200", rec2.Code)
	}
}
