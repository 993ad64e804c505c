package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/signing"
	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
)

const (
	signingExpiryLookback  = 7 * 24 * time.Hour
	signingExpiryBatchSize = 500
)

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lapsedSignatureReader interface {
	ListLapsedPending(ctx context.Context, from, to time.Time, limit int) ([]signing.LapsedSignature, error)
}

// SigningExpiryJobParams configure the lapsed signer notifier.
type SigningExpiryJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Reader   lapsedSignatureReader
	Outbox   outboxEmitter
	Lookback time.Duration
}

// NewSigningExpiryJob builds the job that tells groups about signers whose
// window closed without a signature. Each signature is announced once.
func NewSigningExpiryJob(params SigningExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("signature reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = signingExpiryLookback
	}
	return &signingExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		reader:   params.Reader,
		outbox:   params.Outbox,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type signingExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	reader   lapsedSignatureReader
	outbox   outboxEmitter
	lookback time.Duration
	now      func() time.Time
}

func (j *signingExpiryJob) Name() string { return "signing-expiry" }

func (j *signingExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	lapsed, err := j.reader.ListLapsedPending(ctx, now.Add(-j.lookback), now, signingExpiryBatchSize)
	if err != nil {
		return fmt.Errorf("query lapsed signatures: %w", err)
	}

	var errs []error
	for _, sig := range lapsed {
		if err := j.announce(ctx, sig); err != nil {
			errs = append(errs, fmt.Errorf("signature %s: %w", sig.SignatureID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"count":  len(lapsed),
		"failed": len(errs),
	})
	j.logg.Info(logCtx, "signing expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *signingExpiryJob) announce(ctx context.Context, sig signing.LapsedSignature) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSigningExpired,
			AggregateType: enums.AggregateSignature,
			AggregateID:   sig.SignatureID,
			OccurredAt:    j.now().UTC(),
			Data: payloads.SigningExpiredEvent{
				DocumentID:     sig.DocumentID,
				GroupID:        sig.GroupID,
				SignatureID:    sig.SignatureID,
				SignerID:       sig.SignerID,
				TokenExpiresAt: sig.TokenExpiresAt,
			},
		})
	})
}

