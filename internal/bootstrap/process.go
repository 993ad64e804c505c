// Package bootstrap is the start-up and shutdown path shared by every binary
// under cmd/: environment, config, logger, infrastructure clients and
// signal handling.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/db"
	"github.com/coownly/esign-backend/pkg/env"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/migrate"
	"github.com/coownly/esign-backend/pkg/pubsub"
	"github.com/coownly/esign-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func() error
}

// Process owns the config, logger and clients of one binary. Clients opened
// through it are closed in reverse order when the run function returns.
type Process struct {
	Name    string
	Config  *config.Config
	Logger  *logger.Logger
	closers []closer
}

// Run loads the environment, hands a signal-aware context to fn and exits
// non-zero if fn fails for any reason other than shutdown.
func Run(name string, fn func(ctx context.Context, p *Process) error) {
	p, err := start(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":      p.Config.App.Env,
		"instance": env.InstanceID(),
	})
	p.Logger.Info(ctx, "starting")

	err = fn(ctx, p)
	stop()
	p.Close(context.WithoutCancel(ctx))

	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, "stopped with error", err)
		os.Exit(1)
	}
	p.Logger.Info(ctx, "stopped")
}

func start(name string) (*Process, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = name
	return &Process{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

// OnClose registers fn to run at shutdown, after every later registration.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first. Failures are logged and do
// not stop the remaining closers.
func (p *Process) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "close failed", err)
		}
	}
	p.closers = nil
}

// Database opens the configured database and, in dev, applies migrations.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	p.OnClose("pubsub", client.Close)
	return client, nil
}

// ServeMetrics exposes /metrics on the app port for workers without an API.
func (p *Process) ServeMetrics(ctx context.Context) {
	server := metrics.NewServer(":" + p.Config.App.Port)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error(ctx, "metrics server stopped", err)
		}
	}()
	p.OnClose("metrics server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
