package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDPropagatesValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil)
	req.Header.Set(requestIDHeader, "edge-42.a_b")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "edge-42.a_b" {
		t.Fatalf("expected caller id in context, got %q", seen)
	}
	if got := rec.Header().Get(requestIDHeader); got != "edge-42.a_b" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestRequestIDReplacesInvalidHeader(t *testing.T) {
	for _, raw := range []string{"", "has space", "inject\"quote", strings.Repeat("a", maxRequestIDBytes+1)} {
		var seen string
		handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, raw)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("header %q: expected generated uuid, got %q", raw, seen)
		}
		if rec.Header().Get(requestIDHeader) != seen {
			t.Fatalf("header %q: response id %q does not match context %q", raw, rec.Header().Get(requestIDHeader), seen)
		}
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("panic value leaked into response: %s", rec.Body.String())
	}
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
