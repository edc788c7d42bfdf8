package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("handler"))
	})
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return body
}

// ============================================================================
// Chain Tests
// ============================================================================

func TestChain_NoMiddlewares_ReturnsHandler(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	Chain(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rr.Body.String() != "handler" {
		t.Errorf("expected body 'handler', got %q", rr.Body.String())
	}
}

func TestChain_MultipleMiddlewares_AppliesInOrder(t *testing.T) {
	t.Parallel()

	mark := func(s string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(s))
				next.ServeHTTP(w, r)
			})
		}
	}

	rr := httptest.NewRecorder()
	Chain(okHandler(), mark("1"), mark("2")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Body.String() != "12handler" {
		t.Errorf("expected '12handler', got %q", rr.Body.String())
	}
}

// ============================================================================
// RequestID Tests
// ============================================================================

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("expected header %q, got %q", seen, rr.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_KeepsClientValue(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	RequestID(okHandler()).ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("expected abc-123, got %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_ReplacesUnusableClientValue(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"has space", strings.Repeat("x", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", id)
		rr := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Request-ID"); got == id || got == "" {
			t.Errorf("expected a generated id for %q, got %q", id, got)
		}
	}
}

// ============================================================================
// Logger Tests
// ============================================================================

func TestLogger_RecordsStatusAndCaller(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})
	handler := Chain(inner, RequestID, Logger, Protect(newMockAuthenticator()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/x", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if line["level"] != "WARN" || line["status"] != float64(404) || line["bytes"] != float64(7) {
		t.Errorf("unexpected log line %v", line)
	}
	if line["user_id"] != "user:1" {
		t.Errorf("expected user_id from Protect, got %v", line["user_id"])
	}
}

// ============================================================================
// Recovery Tests
// ============================================================================

func TestRecovery_WritesErrorEnvelope(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["status"] != "error" || body["message"] != "Something went very wrong!" {
		t.Errorf("unexpected envelope %v", body)
	}
}

// ============================================================================
// CORS Tests
// ============================================================================

func TestCORS_AllowedOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://trailhead.example")
	rr := httptest.NewRecorder()
	CORS([]string{"https://trailhead.example"})(okHandler()).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "https://trailhead.example" {
		t.Errorf("expected origin echoed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORS_UnknownOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	CORS([]string{"https://trailhead.example"})(okHandler()).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no allow-origin header")
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	called := false
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/tours", nil))

	if rr.Code != http.StatusNoContent || called {
		t.Errorf("expected 204 without reaching the handler, got %d (called=%v)", rr.Code, called)
	}
}

// ============================================================================
// Compress Tests
// ============================================================================

func TestCompress_Gzip(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rr := httptest.NewRecorder()
	Compress(okHandler()).ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected gzip encoding")
	}
	gz, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(gz)
	if string(data) != "handler" {
		t.Errorf("expected 'handler', got %q", data)
	}
}

func TestCompress_SkipsBodilessResponses(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tours/1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || rr.Header().Get("Content-Encoding") != "" || rr.Body.Len() != 0 {
		t.Errorf("expected a bare 204, got %d %q (%d bytes)", rr.Code, rr.Header().Get("Content-Encoding"), rr.Body.Len())
	}
}

func TestCompress_NotAccepted(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	Compress(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("Content-Encoding") != "" || rr.Body.String() != "handler" {
		t.Errorf("expected plain response, got %q", rr.Body.String())
	}
}
