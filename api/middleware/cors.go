package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// Headers browsers may read from API responses.
var exposedHeaders = []string{
	"X-Request-ID",
	replayedHeader,
	"Retry-After",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
}

// CORS applies the allowed-origin policy. Blank entries are ignored and an
// empty list falls back to the local dev origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(origins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func corsOrigins(configured []string) []string {
	out := make([]string, 0, len(configured))
	for _, origin := range configured {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return defaultCORSOrigins
	}
	return out
}
