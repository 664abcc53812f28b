package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/cropmarket-backend/api/controllers"
	cropcontrollers "github.com/angelmondragon/cropmarket-backend/api/controllers/crops"
	purchasecontrollers "github.com/angelmondragon/cropmarket-backend/api/controllers/purchases"
	webhookcontrollers "github.com/angelmondragon/cropmarket-backend/api/controllers/webhooks"
	"github.com/angelmondragon/cropmarket-backend/api/middleware"
	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	"github.com/angelmondragon/cropmarket-backend/internal/purchases"
	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

// RedisStore is the redis surface the HTTP layer needs.
type RedisStore interface {
	pkgredis.ResponseStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
	Ping(ctx context.Context) error
}

// ReviewService serves the crop rating reads and the dealer review write.
type ReviewService interface {
	cropcontrollers.RatingReader
	purchasecontrollers.ReviewSubmitter
}

// Services groups the domain services mounted on the router.
type Services struct {
	Crops         crops.Service
	Purchases     purchases.Service
	Payments      purchasecontrollers.PaymentService
	Reviews       ReviewService
	Notifications notifications.Service
	StripeWebhook webhookcontrollers.StripeWebhookService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient RedisStore,
	svcs Services,
	stripeVerifier webhookcontrollers.EventVerifier,
	stripeWebhookGuard webhookcontrollers.EventGuard,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	var (
		idempotencyStore pkgredis.ResponseStore
		rateStore        middleware.RateLimiterStore
	)
	if redisClient != nil {
		readiness["redis"] = redisClient
		idempotencyStore = redisClient
		rateStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	webhookLimiter := rate.NewLimiter(rate.Limit(cfg.Stripe.WebhookRPS), cfg.Stripe.WebhookBurst)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.Throttle(webhookLimiter, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.StripeWebhook, stripeVerifier, stripeWebhookGuard, logg))
	})

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.Redis.RateLimitWindow,
		cfg.Redis.RateLimitPerIP,
		cfg.Redis.RateLimitPerActor,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(apiPolicy, rateStore, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		farmerOnly := middleware.RequireRole(logg, enums.RoleFarmer)
		dealerOnly := middleware.RequireRole(logg, enums.RoleDealer)

		r.Route("/crops", func(r chi.Router) {
			r.Get("/", cropcontrollers.List(svcs.Crops, svcs.Reviews, logg))
			r.With(farmerOnly).Post("/", cropcontrollers.Create(svcs.Crops, logg))
			r.Route("/{cropId}", func(r chi.Router) {
				r.Get("/", cropcontrollers.Detail(svcs.Crops, svcs.Reviews, logg))
				r.Get("/reviews", cropcontrollers.Reviews(svcs.Crops, svcs.Reviews, logg))
				r.With(farmerOnly).Patch("/", cropcontrollers.Update(svcs.Crops, svcs.Reviews, logg))
				r.With(farmerOnly).Post("/restock", cropcontrollers.Restock(svcs.Crops, svcs.Reviews, logg))
				r.With(farmerOnly).Delete("/", cropcontrollers.Delete(svcs.Crops, logg))
			})
		})

		r.Route("/purchases", func(r chi.Router) {
			r.With(dealerOnly).Post("/", purchasecontrollers.Create(svcs.Purchases, logg))
			r.With(middleware.RequireRole(logg, enums.RoleDealer, enums.RoleFarmer)).Get("/", purchasecontrollers.List(svcs.Purchases, logg))
			r.Route("/{purchaseId}", func(r chi.Router) {
				r.Get("/", purchasecontrollers.Detail(svcs.Purchases, svcs.Payments, logg))
				r.With(dealerOnly).Delete("/", purchasecontrollers.Delete(svcs.Purchases, logg))
				r.With(farmerOnly).Post("/confirm", purchasecontrollers.Confirm(svcs.Purchases, logg))
				r.With(dealerOnly).Post("/payment-intent", purchasecontrollers.PaymentIntent(svcs.Payments, logg))
				r.With(dealerOnly).Post("/review", purchasecontrollers.Review(svcs.Reviews, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Get("/unread-count", controllers.CountUnreadNotifications(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
		})
	})

	return r
}
