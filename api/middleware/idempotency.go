package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cropmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// A claim outlives any handler; a crashed request frees its key after this.
	inFlightTTL = 2 * time.Minute

	maxIdempotencyKeyLength = 255
)

// idempotentRoute matches a request path by prefix and optional suffix so the
// table works before chi has resolved the full route pattern.
type idempotentRoute struct {
	method string
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

func (r idempotentRoute) matches(method, path string) bool {
	if r.method != method {
		return false
	}
	if r.exact {
		return path == r.prefix
	}
	return strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

// Payment, confirmation and review keys are kept for a week because clients
// retry those across app restarts.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, prefix: "/api/v1/crops", exact: true, ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/crops/", suffix: "/restock", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/purchases", exact: true, ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/notifications/", suffix: "/read", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/notifications/read-all", exact: true, ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/purchases/", suffix: "/confirm", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/purchases/", suffix: "/payment-intent", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/v1/purchases/", suffix: "/review", ttl: criticalIdempotencyTTL},
	{method: http.MethodDelete, prefix: "/api/v1/purchases/", ttl: criticalIdempotencyTTL},
}

// storedResponse is the redis value under an idempotency key. Pending is set
// while the first request is still being handled.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the mutating routes above. The first request claims the key so concurrent
// duplicates get a conflict instead of running twice. 5xx responses release
// the claim so the client can retry with the same key.
func Idempotency(store pkgredis.ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKeyLength {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long").
					WithDetails(map[string]any{"max_length": maxIdempotencyKeyLength}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			claimed, err := claimKey(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(ctx, store, key, hash, w, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}
			saveResponse(context.WithoutCancel(ctx), store, key, ttl, storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}, logg)
		})
	}
}

func claimKey(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	marker, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

func replayOrReject(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The claim expired between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key released, retry the request"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		w.Header().Set("Retry-After", strconv.Itoa(1))
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// saveResponse overwrites the pending claim with the final response in a
// single SET. The key never disappears in between, so a duplicate cannot
// claim it and run the handler again.
func saveResponse(ctx context.Context, store pkgredis.ResponseStore, key string, ttl time.Duration, resp storedResponse, logg *logger.Logger) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logError(ctx, logg, "marshal idempotency record", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

// idempotencyScope ties a key to the caller and the exact resource path.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	// Group middleware only sees a wildcard pattern until routing finishes.
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return trimTrailingSlash(pattern)
		}
	}
	return trimTrailingSlash(r.URL.Path)
}

func trimTrailingSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(method, path) {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
