package main

import (
	"context"
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coownly/esign-backend/internal/bootstrap"
	"github.com/coownly/esign-backend/internal/cron"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/internal/signing"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/outbox"
)

const (
	lockScope = "cron-worker"
	lockTTL   = 25 * time.Hour
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	bootstrap.Run("cron-worker", func(ctx context.Context, p *bootstrap.Process) error {
		service, err := newService(ctx, p)
		if err != nil {
			return err
		}
		if *once {
			return service.RunOnce(ctx)
		}
		p.ServeMetrics(ctx)
		return service.Run(ctx)
	})
}

func newService(ctx context.Context, p *bootstrap.Process) (*cron.Service, error) {
	dbClient, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return nil, err
	}

	env := p.Config.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := locks.NewRedisLock(redisClient, redisClient.LockKey(lockScope, env), lockTTL)
	if err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger: p.Logger,
		DB:     dbClient,
		Outbox: outboxRepo,
		DLQ:    outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewSigningExpiryJob(cron.SigningExpiryJobParams{
		Logger: p.Logger,
		DB:     dbClient,
		Reader: signing.NewRepository(dbClient.DB()),
		Outbox: outbox.NewService(outboxRepo, p.Logger),
	})
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   p.Logger,
		Registry: cron.NewRegistry(expiry, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: p.Config.Cron.Interval,
	})
}
