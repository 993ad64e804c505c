package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/logger"
)

const (
	defaultPublishedRetention = 30 * 24 * time.Hour
	defaultDLQRetention       = 90 * 24 * time.Hour
	// rows that needed this many attempts are kept past the window for
	// delivery forensics
	defaultRetriedThreshold = 5
)

// OutboxRetentionJobParams configure the pruning of delivered outbox rows and
// old dead letters.
type OutboxRetentionJobParams struct {
	Logger             *logger.Logger
	DB                 txRunner
	Outbox             publishedPruner
	DLQ                deadLetterPruner
	PublishedRetention time.Duration
	DLQRetention       time.Duration
	RetriedThreshold   int
}

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg               *logger.Logger
	db                 txRunner
	outbox             publishedPruner
	dlq                deadLetterPruner
	publishedRetention time.Duration
	dlqRetention       time.Duration
	retriedThreshold   int
	now                func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:               params.Logger,
		db:                 params.DB,
		outbox:             params.Outbox,
		dlq:                params.DLQ,
		publishedRetention: params.PublishedRetention,
		dlqRetention:       params.DLQRetention,
		retriedThreshold:   params.RetriedThreshold,
		now:                time.Now,
	}
	if job.publishedRetention <= 0 {
		job.publishedRetention = defaultPublishedRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDLQRetention
	}
	if job.retriedThreshold <= 0 {
		job.retriedThreshold = defaultRetriedThreshold
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes both tables in one transaction. The DLQ step is skipped when no
// DLQ repository was wired.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.Add(-j.publishedRetention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var published, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if published, err = j.outbox.DeletePublishedBefore(ctx, tx, publishedCutoff, j.retriedThreshold); err != nil {
			return fmt.Errorf("published rows: %w", err)
		}
		if j.dlq == nil {
			return nil
		}
		if deadLetters, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff":     publishedCutoff,
		"dlq_cutoff":           dlqCutoff,
		"published_deleted":    published,
		"dead_letters_deleted": deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
