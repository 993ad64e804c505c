package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/coownly/esign-backend/api/routes"
	"github.com/coownly/esign-backend/internal/bootstrap"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/pkg/redis"
)

const (
	documentLockScope = "documents"
	shutdownGrace     = 15 * time.Second
)

func main() {
	bootstrap.Run("api", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg := p.Config

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}

	// Without redis, document locks stay in-process and the HTTP idempotency
	// middleware is skipped.
	var (
		redisClient *redis.Client
		locker      locks.Locker = locks.NewLocalLocker()
	)
	if cfg.Redis.Enabled() {
		if redisClient, err = p.Redis(ctx); err != nil {
			return err
		}
		if locker, err = locks.NewRedisLocker(redisClient, documentLockScope, cfg.Signing.DocumentLockTTL); err != nil {
			return err
		}
	} else {
		p.Logger.Warn(ctx, "redis not configured; using in-process document locks")
	}

	store, err := newObjectStore(ctx, cfg, p.Logger)
	if err != nil {
		return err
	}
	p.OnClose("object storage", store.Close)

	svc, err := buildServices(cfg, p.Logger, dbClient, store, locker)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			p.Logger,
			dbClient,
			redisClient,
			store,
			svc.documents,
			svc.signing,
			svc.certificates,
			svc.notifications,
		),
	}

	ctx = p.Logger.WithFields(ctx, map[string]any{"addr": server.Addr, "storage": cfg.Storage.Driver})
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	p.Logger.Info(ctx, "listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
