package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSOriginsFallsBackToDevDefaults(t *testing.T) {
	got := corsOrigins([]string{" ", ""})
	if len(got) != len(defaultCORSOrigins) || got[0] != defaultCORSOrigins[0] {
		t.Fatalf("expected dev defaults, got %v", got)
	}

	got = corsOrigins([]string{" https://market.example.com/ ", ""})
	if len(got) != 1 || got[0] != "https://market.example.com" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func TestCORSPreflightAllowsIdempotencyKey(t *testing.T) {
	h := CORS([]string{"https://market.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/purchases", nil)
	req.Header.Set("Origin", "https://market.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://market.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(strings.ToLower(got), "idempotency-key") {
		t.Fatalf("allow headers = %q", got)
	}
}

func TestCORSExposesRateLimitHeaders(t *testing.T) {
	h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Ratelimit-Remaining") && !strings.Contains(got, "X-RateLimit-Remaining") {
		t.Fatalf("expose headers = %q", got)
	}
}
