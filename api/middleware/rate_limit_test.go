package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("api", time.Minute, 2, 2)
	handler := RateLimit(policy, store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimit_ActorLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("api", time.Minute, 0, 2)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		req = req.WithContext(WithUserID(req.Context(), "dealer-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2:
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}

	// a different actor has its own window
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", nil)
	req = req.WithContext(WithUserID(req.Context(), "dealer-2"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other actor to pass, got %d", rec.Code)
	}
}

func TestRateLimit_IPLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("api", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil)
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if i == 1 && rec.Header().Get("Retry-After") != "30" {
			t.Fatalf("expected Retry-After to cover the window, got %q", rec.Header().Get("Retry-After"))
		}
	}
}

func TestRateLimit_ReportsTightestRemaining(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("api", time.Minute, 10, 3)
	handler := RateLimit(policy, store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/purchases", nil)
	req.RemoteAddr = "9.9.9.9:1"
	req = req.WithContext(WithUserID(req.Context(), "dealer-9"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected actor limit header, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected 2 remaining, got %q", got)
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       1,
		100 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
	}
	for in, want := range cases {
		if got := retryAfterSeconds(in); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestRateLimit_DisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("api", 0, 1, 1), store, nil)(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("expected no counters, got %v", store.counts)
	}
}

func TestThrottleRejectsOverBurst(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	handler := Throttle(limiter, nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %s", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %s", got)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return pkgredis.Window{
		Allowed: f.counts[scope] <= limit,
		Count:   f.counts[scope],
		Limit:   limit,
		ResetIn: window / 2,
	}, nil
}
