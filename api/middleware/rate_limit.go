package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/cropmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

// RateLimiterStore counts requests in fixed redis windows.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	actorLimit int
}

// NewRateLimitPolicy builds a policy with the supplied window and limits.
// A zero limit disables that dimension.
func NewRateLimitPolicy(name string, window time.Duration, ipLimit, actorLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		actorLimit: actorLimit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.actorLimit > 0)
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "api"
	}
	return p.name
}

func (p RateLimitPolicy) ipScope(ip string) string {
	if ip == "" {
		return ""
	}
	return fmt.Sprintf("ip:%s:%s", p.normalizedName(), ip)
}

func (p RateLimitPolicy) actorScope(userID string) string {
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("actor:%s:%s", p.normalizedName(), userID)
}

// RateLimit enforces fixed-window counters per client IP and, once Auth has
// run, per authenticated actor.
func RateLimit(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip, userID := clientIP(r), UserIDFromContext(ctx)
			checks := []struct {
				dimension string
				subject   string
				scope     string
				limit     int
			}{
				{"ip", ip, policy.ipScope(ip), policy.ipLimit},
				{"actor", userID, policy.actorScope(userID), policy.actorLimit},
			}

			var tightest *pkgredis.Window
			for _, check := range checks {
				if check.limit <= 0 || check.scope == "" {
					continue
				}
				win, err := store.FixedWindowAllow(ctx, check.scope, int64(check.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !win.Allowed {
					setRateLimitHeaders(w, win)
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(win.ResetIn)))
					respondRateLimited(ctx, logg, w, policy, check.dimension, check.subject, win)
					return
				}
				if tightest == nil || win.Remaining() < tightest.Remaining() {
					tightest = &win
				}
			}
			if tightest != nil {
				setRateLimitHeaders(w, *tightest)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, win pkgredis.Window) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(win.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(win.Remaining(), 10))
	h.Set("X-RateLimit-Reset", strconv.Itoa(retryAfterSeconds(win.ResetIn)))
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, dimension, subject string, win pkgredis.Window) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":       dimension,
			"subject":     subject,
			"policy":      policy.normalizedName(),
			"attempts":    win.Count,
			"limit":       win.Limit,
			"reset_in_ms": win.ResetIn.Milliseconds(),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
