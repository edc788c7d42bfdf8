package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{Requests: requests, Window: window})
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	req.RemoteAddr = addr
	return req
}

// ============================================================================
// NewRateLimiter Tests
// ============================================================================

func TestNewRateLimiter_Defaults(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 0, 0)

	if rl.burst != 100 {
		t.Errorf("expected 100 requests, got %d", rl.burst)
	}
	if rl.window != time.Hour {
		t.Errorf("expected 1h window, got %v", rl.window)
	}
	if rl.message != "Too many requests from this IP, please try again in an hour!" {
		t.Errorf("unexpected message %q", rl.message)
	}
}

// ============================================================================
// Reserve Tests
// ============================================================================

func TestRateLimiter_Reserve_ExhaustsBurst(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 3, time.Hour)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if ok, _, _ := rl.Reserve("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, remaining, retry := rl.Reserve("10.0.0.1")
	if ok {
		t.Fatal("fourth request should be limited")
	}
	if remaining != 0 || retry <= 0 {
		t.Errorf("expected remaining 0 and positive retry, got %d, %v", remaining, retry)
	}
}

func TestRateLimiter_Reserve_RefillsOverTime(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 2, time.Hour)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Reserve("10.0.0.1")
	rl.Reserve("10.0.0.1")
	if ok, _, _ := rl.Reserve("10.0.0.1"); ok {
		t.Fatal("expected limit")
	}

	now = now.Add(31 * time.Minute)
	if ok, _, _ := rl.Reserve("10.0.0.1"); !ok {
		t.Error("expected one token refilled after half the window")
	}
}

func TestRateLimiter_Reserve_PerClient(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 1, time.Hour)

	if ok, _, _ := rl.Reserve("10.0.0.1"); !ok {
		t.Fatal("first client should be allowed")
	}
	if ok, _, _ := rl.Reserve("10.0.0.2"); !ok {
		t.Error("second client has its own bucket")
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 1, time.Hour)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Reserve("10.0.0.1")

	now = now.Add(2 * time.Hour)
	rl.evictIdle()

	if len(rl.clients) != 0 {
		t.Errorf("expected idle client evicted, %d left", len(rl.clients))
	}
}

// ============================================================================
// RateLimit Middleware Tests
// ============================================================================

func TestRateLimit_Middleware(t *testing.T) {
	t.Parallel()
	rl := newTestLimiter(t, 1, time.Hour)
	handler := RateLimit(rl)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1:1234"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("expected limit header 1, got %q", rr.Header().Get("X-RateLimit-Limit"))
	}

	// Same IP, different port.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1:5678"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	body := decodeEnvelope(t, rr)
	if body["status"] != "fail" || body["message"] != "Too many requests from this IP, please try again in an hour!" {
		t.Errorf("unexpected envelope %v", body)
	}
}
