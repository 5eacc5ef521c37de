package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kpireview/internal/domain/auth"
)

func authedHandler(t *testing.T, wantUser bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetUser(r.Context())
		if ok != wantUser {
			t.Fatalf("user presence = %v, want %v", ok, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthParsesBearerToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", auth.Claims{UserID: "u-1", EmployeeID: "emp-1", Role: auth.RoleManager}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.UserID != "u-1" || user.EmployeeID != "emp-1" || user.Role != auth.RoleManager {
			t.Fatalf("unexpected user context: %+v", user)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuthAcceptsTokenQueryParam(t *testing.T) {
	token, err := auth.GenerateToken("secret", auth.Claims{UserID: "u-2", Role: auth.RoleEmployee}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := Auth("secret")(authedHandler(t, true))
	req := httptest.NewRequest(http.MethodGet, "/events/stream?token="+token, nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuthInvalidTokenFallsThroughAnonymously(t *testing.T) {
	handler := Auth("secret")(authedHandler(t, false))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequirePermission(auth.PermEvaluationsAdmin)(next)

	// Anonymous request.
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Employee lacks the permission.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u-1", Role: auth.RoleEmployee}))
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// HR holds it.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u-2", Role: auth.RoleHR}))
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
