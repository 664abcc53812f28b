package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/cropmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

// Throttle caps in-process request throughput with a token bucket.
func Throttle(limiter *rate.Limiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if logg != nil {
					logg.Warn(r.Context(), "throttle.blocked")
				}
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
