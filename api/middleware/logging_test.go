package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

func TestLoggingWritesOneLinePerRequest(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api", Level: zerolog.InfoLevel, Output: &buf, Format: "json"})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/crops/{cropID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/crops/42", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected a single info line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["bytes"] != float64(5) {
		t.Fatalf("unexpected status or size in %v", entry)
	}
	if entry["route"] != "/api/v1/crops/{cropID}" || entry["remote_ip"] != "192.0.2.1" {
		t.Fatalf("unexpected route or ip in %v", entry)
	}
}

func TestLoggingNilLoggerPassesThrough(t *testing.T) {
	called := false
	h := Logging(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected handler to run")
	}
}
