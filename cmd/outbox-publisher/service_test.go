package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
	"github.com/coownly/esign-backend/pkg/outbox/registry"
)

func TestMain(m *testing.M) {
	// the pubsub client library starts the opencensus view worker from init
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func TestDrainBatchRetriesFailedRowAndPublishesTheRest(t *testing.T) {
	first := signedRow(t, 0)
	second := signedRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: signedResolved(uuid.Nil)}, &fakeDLQRepo{}, config.OutboxConfig{})

	claimed, err := svc.drainBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
	assert.Empty(t, repo.terminal)
}

func TestDrainBatchReportsEmptyOutbox(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, config.OutboxConfig{})

	claimed, err := svc.drainBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestPublishKeysByDocumentAndReusesTopicPublisher(t *testing.T) {
	documentID := uuid.New()
	repo := &fakeRepo{events: []models.OutboxEvent{signedRow(t, 0), signedRow(t, 0)}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "signing-notifications"},
		Envelope:   outbox.PayloadEnvelope{Version: 1},
		Payload:    &payloads.SigningRequestedEvent{DocumentID: documentID},
	}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, config.OutboxConfig{})

	factoryCalls := 0
	svc.publishers = newTopicPublishers(func(topic string) publisher {
		assert.Equal(t, "signing-notifications", topic)
		factoryCalls++
		return pub
	})

	_, err := svc.drainBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, factoryCalls)
	require.Len(t, pub.messages, 2)
	for _, msg := range pub.messages {
		assert.Equal(t, documentID.String(), msg.OrderingKey)
		assert.Equal(t, "1", msg.Attributes["schema_version"])
		assert.Equal(t, string(enums.EventDocumentSigned), msg.Attributes["event_type"])
	}
	assert.Len(t, repo.published, 2)

	svc.publishers.stopAll()
	assert.Equal(t, 1, pub.stopped)
}

func TestPublishFailureResumesOrderingKey(t *testing.T) {
	event := signedRow(t, 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	svc := newTestService(t, &fakeRepo{}, pub, &fakeRegistry{resolved: signedResolved(uuid.Nil)}, &fakeDLQRepo{}, config.OutboxConfig{})

	result, err := svc.settle(context.Background(), nil, event)
	require.NoError(t, err)
	assert.Equal(t, outcomeRetry, result)
	assert.Equal(t, []string{event.AggregateID.String()}, pub.resumed)
}

func TestSettleDeadLetters(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		registry *fakeRegistry
		pub      *fakePublisher
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:     "unresolvable row",
			registry: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
			pub:      &fakePublisher{},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempts exhausted",
			attempts: 1,
			registry: &fakeRegistry{resolved: signedResolved(uuid.Nil)},
			pub:      &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}},
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
		{
			name:     "publisher returned no result",
			registry: &fakeRegistry{resolved: signedResolved(uuid.Nil)},
			pub:      &fakePublisher{},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := signedRow(t, tc.attempts)
			repo := &fakeRepo{}
			dlq := &fakeDLQRepo{}
			svc := newTestService(t, repo, tc.pub, tc.registry, dlq, config.OutboxConfig{MaxAttempts: 2})

			result, err := svc.settle(context.Background(), nil, event)
			require.NoError(t, err)
			assert.Equal(t, outcomeDeadLettered, result)
			require.Len(t, dlq.entries, 1)
			entry := dlq.entries[0]
			assert.Equal(t, event.ID, entry.EventID)
			assert.JSONEq(t, string(event.Payload), string(entry.Payload))
			assert.Equal(t, tc.reason, entry.ErrorReason)
			require.NotNil(t, entry.ErrorMessage)
			assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
		})
	}
}

func TestSettleSurfacesBookkeepingErrors(t *testing.T) {
	repo := &fakeRepo{markErr: errors.New("db down")}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: signedResolved(uuid.Nil)}, &fakeDLQRepo{}, config.OutboxConfig{})

	_, err := svc.settle(context.Background(), nil, signedRow(t, 0))
	assert.ErrorContains(t, err, "mark published")
}

func TestSettingsFromAppliesDefaults(t *testing.T) {
	got := settingsFrom(config.OutboxConfig{})
	assert.Equal(t, drainSettings{batchSize: 50, maxAttempts: 10, pollInterval: 500 * time.Millisecond}, got)

	got = settingsFrom(config.OutboxConfig{BatchSize: 5, MaxAttempts: 3, PollIntervalMS: 20})
	assert.Equal(t, drainSettings{batchSize: 5, maxAttempts: 3, pollInterval: 20 * time.Millisecond}, got)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.ErrorContains(t, err, "logger is required")
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, resolver registryResolver, dlq dlqRepository, outboxCfg config.OutboxConfig) *Service {
	t.Helper()
	if outboxCfg.BatchSize == 0 {
		outboxCfg.BatchSize = 2
	}
	if outboxCfg.MaxAttempts == 0 {
		outboxCfg.MaxAttempts = 5
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	require.NoError(t, err)
	return svc
}

func signedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventDocumentSigned,
		AggregateType: enums.AggregateSignature,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func signedResolved(documentID uuid.UUID) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "signing-events", AggregateType: enums.AggregateSignature},
		Envelope:   outbox.PayloadEnvelope{Version: 1},
		Payload:    &payloads.DocumentSignedEvent{DocumentID: documentID},
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
	stopped  int
}

func (f *fakePublisher) ResumePublish(key string) { f.resumed = append(f.resumed, key) }

func (f *fakePublisher) Stop() { f.stopped++ }

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) { return "server-id", f.err }

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
