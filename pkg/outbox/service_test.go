package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/dbtest"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t, "outbox_emit")
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	docID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventDocumentUploaded,
			AggregateType: enums.AggregateDocument,
			AggregateID:   docID,
			Data:          map[string]string{"file_name": "deed.pdf"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(nil, enums.AggregateDocument, docID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventDocumentUploaded, rows[0].EventType)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"file_name":"deed.pdf"}`, string(envelope.Data))
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t, "outbox_rollback")
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	docID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventDocumentDeleted,
			AggregateType: enums.AggregateDocument,
			AggregateID:   docID,
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := repo.ListForAggregate(nil, enums.AggregateDocument, docID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	conn := dbtest.Open(t, "outbox_invalid")
	svc := NewService(NewRepository(conn), nil)

	cases := map[string]DomainEvent{
		"no type":      {AggregateType: enums.AggregateDocument, AggregateID: uuid.New()},
		"no aggregate": {EventType: enums.EventDocumentUploaded, AggregateID: uuid.New()},
		"nil id":       {EventType: enums.EventDocumentUploaded, AggregateType: enums.AggregateDocument},
	}
	for name, event := range cases {
		err := conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, event)
		})
		assert.Error(t, err, name)
	}
}

func TestEmitIfNotExistsEmitsOnce(t *testing.T) {
	conn := dbtest.Open(t, "outbox_emit_once")
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	docID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventDocumentFullySigned,
		AggregateType: enums.AggregateDocument,
		AggregateID:   docID,
		Data:          map[string]string{"document_id": docID.String()},
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	rows, err := repo.ListForAggregate(nil, enums.AggregateDocument, docID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.True(t, fixed.Equal(envelope.OccurredAt))
	assert.Equal(t, CurrentEnvelopeVersion, envelope.Version)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t, "outbox_lifecycle")
	repo := NewRepository(conn)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCertificateRevoked,
		AggregateType: enums.AggregateCertificate,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, event))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		return repo.MarkFailedTx(tx, event.ID, errors.New("transient"))
	}))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, event.ID, errors.New("gave up"), 3)
	}))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		assert.Empty(t, rows, "terminal rows must not be fetched again")
		return nil
	}))

	dlq := NewDLQRepository(conn)
	msg := "gave up"
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))
	var found models.OutboxDLQ
	require.NoError(t, conn.Where("event_id = ?", event.ID).First(&found).Error)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, found.ErrorReason)
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	conn := dbtest.Open(t, "outbox_dlq_retention")
	dlq := NewDLQRepository(conn)
	now := time.Now().UTC()

	insert := func(failedAt time.Time) {
		require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventSigningRequested,
			AggregateType: enums.AggregateSignature,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			FailedAt:      failedAt,
		}))
	}
	insert(now.Add(-100 * 24 * time.Hour))
	insert(now.Add(-time.Hour))

	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = dlq.DeleteFailedBefore(context.Background(), tx, now.Add(-90*24*time.Hour))
		return err
	}))
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestClipUTF8KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", clipUTF8("abc", 10))
	assert.Equal(t, "ab", clipUTF8("abé", 3))
	assert.Equal(t, "abé", clipUTF8("abéd", 4))
}

func TestDeletePublishedBeforeKeepsRecentAndRetriedRows(t *testing.T) {
	conn := dbtest.Open(t, "outbox_retention")
	repo := NewRepository(conn)

	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	aggregateID := uuid.New()
	insert := func(publishedAt *time.Time, attempts int) uuid.UUID {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventDocumentSigned,
			AggregateType: enums.AggregateSignature,
			AggregateID:   aggregateID,
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
			AttemptCount:  attempts,
		}
		require.NoError(t, repo.Insert(conn, row))
		return row.ID
	}
	insert(&old, 0)
	keptRetried := insert(&old, 5)
	keptRecent := insert(&recent, 0)
	keptPending := insert(nil, 0)

	var deleted int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.DeletePublishedBefore(context.Background(), tx, now.Add(-30*24*time.Hour), 5)
		return err
	}))
	assert.Equal(t, int64(1), deleted)

	rows, err := repo.ListForAggregate(nil, enums.AggregateSignature, aggregateID)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{keptRetried, keptRecent, keptPending}, ids)
}
