package kit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	hit := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := hit("10.0.0.1:1234"); rr.Code != http.StatusNoContent {
			t.Fatalf("call %d status=%d", i, rr.Code)
		}
	}

	rr := hit("10.0.0.1:5678")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}

	if rr := hit("10.0.0.2:1234"); rr.Code != http.StatusNoContent {
		t.Fatalf("other client limited: %d", rr.Code)
	}

	now = now.Add(61 * time.Second)
	if rr := hit("10.0.0.1:1234"); rr.Code != http.StatusNoContent {
		t.Fatalf("window did not slide: %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	if got := ClientIP(req); got != "192.168.1.5" {
		t.Fatalf("ClientIP=%q", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ClientIP with XFF=%q", got)
	}
}
