package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kpireview/internal/domain/auth"
)

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitKeysByActorOverIP(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		if userID != "" {
			req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: userID, Role: auth.RoleEmployee}))
		}
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("u-1") != http.StatusOK {
		t.Fatal("first request for u-1 should pass")
	}
	if send("u-2") != http.StatusOK {
		t.Fatal("u-2 shares the IP but has its own budget")
	}
	if send("u-1") != http.StatusTooManyRequests {
		t.Fatal("second request for u-1 should be limited")
	}
}
