package main

import (
	"context"

	"github.com/angelmondragon/cropmarket-backend/internal/bootstrap"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("worker")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	redisClient := proc.Redis(boot)
	pubsubClient := proc.PubSub(boot)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Check(boot, "event registry", err)

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Check(boot, "idempotency manager", err)

	notificationConsumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Repo:         notifications.NewRepository(dbClient.DB()),
		Subscription: pubsubClient.NotificationSubscription(),
		Registry:     eventRegistry,
		Idempotency:  idempotencyManager,
		Dispatcher:   notifications.NewLogDispatcher(logg),
		Logger:       logg,
	})
	proc.Check(boot, "notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
		PubSub: pubsubClient,
		Subscribers: []Subscriber{
			{Name: cfg.PubSub.NotificationSubscription, Consumer: notificationConsumer},
		},
	})
	proc.Check(boot, "worker service", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	logg.Info(ctx, "starting worker")
	proc.Finish(ctx, service.Run(ctx))
}
