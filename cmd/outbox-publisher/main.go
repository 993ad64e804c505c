package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coownly/esign-backend/internal/bootstrap"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/registry"
)

func main() {
	bootstrap.Run("outbox-publisher", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := p.PubSub(ctx)
	if err != nil {
		return err
	}
	events, err := registry.NewEventRegistry(p.Config.PubSub)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config:        p.Config,
		Logger:        p.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	p.ServeMetrics(ctx)
	return service.Run(ctx)
}
