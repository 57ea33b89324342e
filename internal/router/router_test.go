package router_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thislinkplease/midterm-cross-platform/internal/router"
)

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestRoutes(t *testing.T) {
	var calls int
	h := router.New(router.Options{RateLimit: 100, RateBurst: 100}, okHandler(&calls))

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/functions/v1/admin-create-user", http.StatusOK},
		{http.MethodPost, "/admin-create-user", http.StatusOK},
		{http.MethodGet, "/admin-create-user", http.StatusMethodNotAllowed},
		{http.MethodPost, "/functions/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}")))
		if rec.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
	if calls != 2 {
		t.Errorf("function called %d times, want 2", calls)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	var calls int
	h := router.New(router.Options{}, okHandler(&calls))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if id := rec.Header().Get(router.RequestIDHeader); len(id) != 27 {
		t.Errorf("request id = %q", id)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(router.RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(router.RequestIDHeader); got != "caller-id" {
		t.Errorf("request id = %q, want caller-id", got)
	}
}

func TestRateLimit(t *testing.T) {
	var calls int
	h := router.New(router.Options{RateLimit: 0.001, RateBurst: 2}, okHandler(&calls))

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin-create-user", strings.NewReader("{}")))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health limited: %d", rec.Code)
	}
}
