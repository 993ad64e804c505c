package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coownly/esign-backend/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type blockingRunner struct{ started chan struct{} }

func (b blockingRunner) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return nil
}

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context) error { return f.err }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}

func TestRunStopsWhenDependencyUnavailable(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:               testLogger(),
		DB:                   fakePinger{},
		Redis:                fakePinger{err: errors.New("connection refused")},
		PubSub:               fakePinger{},
		NotificationConsumer: failingRunner{},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRunReturnsOnCancel(t *testing.T) {
	runner := blockingRunner{started: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger:               testLogger(),
		DB:                   fakePinger{},
		Redis:                fakePinger{},
		PubSub:               fakePinger{},
		NotificationConsumer: runner,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-runner.started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:               testLogger(),
		DB:                   fakePinger{},
		Redis:                fakePinger{},
		PubSub:               fakePinger{},
		NotificationConsumer: failingRunner{err: errors.New("subscription deleted")},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.EqualError(t, err, "subscription deleted")
}
