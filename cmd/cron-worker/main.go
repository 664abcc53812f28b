package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cropmarket-backend/internal/bootstrap"
	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/cron"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	"github.com/angelmondragon/cropmarket-backend/internal/payments"
	"github.com/angelmondragon/cropmarket-backend/internal/purchases"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/stripe"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)

	stripeClient, err := stripe.NewClient(boot, cfg.Stripe, logg)
	proc.Check(boot, "stripe client", err)
	gateway, err := stripe.NewPaymentIntents(stripeClient)
	proc.Check(boot, "payment gateway", err)

	lifecycleMetrics := metrics.NewLifecycleMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:           payments.NewRepository(dbClient.DB()),
		Purchases:      purchases.NewRepository(dbClient.DB()),
		Crops:          crops.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		Outbox:         outbox.NewService(outboxRepo, logg),
		Gateway:        gateway,
		Logger:         logg,
		Metrics:        lifecycleMetrics,
		Currency:       stripeClient.Currency(),
		GatewayTimeout: cfg.Stripe.Timeout(),
	})
	proc.Check(boot, "payments service", err)

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:    logg,
		Payments:  paymentsService,
		MaxAge:    cfg.Cron.PendingPaymentMaxAge,
		BatchSize: cfg.Cron.PaymentReconcileBatchSize,
	})
	proc.Check(boot, "payment reconcile job", err)
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Repository:  outboxRepo,
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Retention:   cfg.Cron.OutboxRetentionDays,
	})
	proc.Check(boot, "outbox retention job", err)
	notificationJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetentionDays,
	})
	proc.Check(boot, "notification cleanup job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockScope(cfg.App.Env)), cfg.Cron.Interval+cfg.Cron.JobTimeout)
	proc.Check(boot, "cron lock", err)

	registry := cron.NewRegistry(reconcileJob)
	registry.Register(outboxJob, cfg.Cron.RetentionEvery)
	registry.Register(notificationJob, cfg.Cron.RetentionEvery)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	proc.Check(boot, "cron service", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)
	logg.Info(ctx, "starting cron worker")
	proc.Finish(ctx, service.Run(ctx))
}

// lockScope keeps environments sharing one redis from blocking each other.
func lockScope(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
