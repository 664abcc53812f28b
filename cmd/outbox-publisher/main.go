package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cropmarket-backend/internal/bootstrap"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database(boot)
	pubsubClient := proc.PubSub(boot)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Check(boot, "event registry", err)

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
		Metrics:    metrics.NewLifecycleMetrics(prometheus.DefaultRegisterer),
	})
	proc.Check(boot, "outbox publisher", err)

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)
	logg.Info(ctx, "starting outbox publisher")
	proc.Finish(ctx, service.Run(ctx))
}
