package main

import (
	"context"
	"errors"

	"github.com/coownly/esign-backend/internal/bootstrap"
	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/memberships"
	"github.com/coownly/esign-backend/internal/notifications"
	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/outbox/idempotency"
)

func main() {
	bootstrap.Run("worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg := p.Config
	if cfg.PubSub.NotificationSubscription == "" {
		return errors.New(config.EnvPubSubNotificationSubscription + " is required")
	}

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := p.PubSub(ctx)
	if err != nil {
		return err
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Notifications.IdempotencyTTL)
	if err != nil {
		return err
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Name:         cfg.Notifications.ConsumerName,
		Repo:         notifications.NewRepository(dbClient.DB()),
		Members:      memberships.NewRepository(dbClient.DB()),
		Documents:    documents.NewRepository(dbClient.DB()),
		Subscription: pubsubClient.NotificationSubscription(),
		Idempotency:  manager,
		Decoders:     notifications.NewDecoders(),
		Logger:       p.Logger,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:               p.Logger,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		NotificationConsumer: consumer,
	})
	if err != nil {
		return err
	}

	p.ServeMetrics(ctx)
	return service.Run(p.Logger.WithField(ctx, "subscription", cfg.PubSub.NotificationSubscription))
}
