package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cropmarket-backend/api/routes"
	"github.com/angelmondragon/cropmarket-backend/internal/bootstrap"
	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	"github.com/angelmondragon/cropmarket-backend/internal/payments"
	"github.com/angelmondragon/cropmarket-backend/internal/purchases"
	"github.com/angelmondragon/cropmarket-backend/internal/reviews"
	stripewebhook "github.com/angelmondragon/cropmarket-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/cropmarket-backend/pkg/env"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/cropmarket-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)

	stripeClient, err := stripe.NewClient(boot, cfg.Stripe, logg)
	proc.Check(boot, "stripe client", err)
	gateway, err := stripe.NewPaymentIntents(stripeClient)
	proc.Check(boot, "payment gateway", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	cropRepo := crops.NewRepository(dbClient.DB())
	purchaseRepo := purchases.NewRepository(dbClient.DB())

	cropService, err := crops.NewService(cropRepo, dbClient, int64(cfg.Inventory.DefaultLowStockThreshold))
	proc.Check(boot, "crops service", err)

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:    purchaseRepo,
		Crops:   cropRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: lifecycleMetrics,
	})
	proc.Check(boot, "purchases service", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:           payments.NewRepository(dbClient.DB()),
		Purchases:      purchaseRepo,
		Crops:          cropRepo,
		Tx:             dbClient,
		Outbox:         outboxService,
		Gateway:        gateway,
		Logger:         logg,
		Metrics:        lifecycleMetrics,
		Currency:       stripeClient.Currency(),
		GatewayTimeout: cfg.Stripe.Timeout(),
	})
	proc.Check(boot, "payments service", err)

	reviewService, err := reviews.NewService(reviews.NewRepository(dbClient.DB()), dbClient, outboxService)
	proc.Check(boot, "reviews service", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	proc.Check(boot, "notifications service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentService,
		Logger:   logg,
		Metrics:  lifecycleMetrics,
	})
	proc.Check(boot, "stripe webhook service", err)
	eventManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Check(boot, "webhook idempotency manager", err)
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(eventManager, stripewebhook.ConsumerName)
	proc.Check(boot, "webhook guard", err)

	addr := ":" + env.Prefixed("PORT", cfg.App.Port)
	ctx, stop := proc.SignalContext()
	defer stop()
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			routes.Services{
				Crops:         cropService,
				Purchases:     purchaseService,
				Payments:      paymentService,
				Reviews:       reviewService,
				Notifications: notificationService,
				StripeWebhook: webhookService,
			},
			stripeClient,
			webhookGuard,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	proc.Finish(ctx, serve(ctx, server, logg))
}

// serve runs server until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, logg *logger.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return ctx.Err()
}
