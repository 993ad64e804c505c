package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/logger"
)

func TestOutboxRetentionJobPrunesBothTables(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	outboxRepo := &fakePublishedPruner{deleted: 7}
	dlq := &fakeDeadLetterPruner{deleted: 2}
	job := newRetentionJob(t, OutboxRetentionJobParams{Outbox: outboxRepo, DLQ: dlq})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-30*24*time.Hour), outboxRepo.cutoff)
	assert.Equal(t, defaultRetriedThreshold, outboxRepo.minAttempts)
	assert.Equal(t, now.Add(-90*24*time.Hour), dlq.cutoff)
}

func TestOutboxRetentionJobHonoursOverridesAndOptionalDLQ(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	outboxRepo := &fakePublishedPruner{}
	job := newRetentionJob(t, OutboxRetentionJobParams{
		Outbox:             outboxRepo,
		PublishedRetention: 48 * time.Hour,
		RetriedThreshold:   2,
	})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), outboxRepo.cutoff)
	assert.Equal(t, 2, outboxRepo.minAttempts)
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	job := newRetentionJob(t, OutboxRetentionJobParams{Outbox: &fakePublishedPruner{err: errors.New("boom")}})
	assert.ErrorContains(t, job.Run(context.Background()), "published rows: boom")

	job = newRetentionJob(t, OutboxRetentionJobParams{
		Outbox: &fakePublishedPruner{},
		DLQ:    &fakeDeadLetterPruner{err: errors.New("locked")},
	})
	assert.ErrorContains(t, job.Run(context.Background()), "dead letters: locked")
}

func TestNewOutboxRetentionJobRequiresOutbox(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:     passthroughTx{},
	})
	assert.Error(t, err)
}

func newRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	params.DB = passthroughTx{}
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

type fakePublishedPruner struct {
	cutoff      time.Time
	minAttempts int
	deleted     int64
	err         error
}

func (f *fakePublishedPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.cutoff, f.minAttempts = cutoff, minAttemptCount
	return f.deleted, f.err
}

type fakeDeadLetterPruner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeDeadLetterPruner) DeleteFailedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
