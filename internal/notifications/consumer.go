package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/outbox/idempotency"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
	"github.com/coownly/esign-backend/pkg/outbox/registry"
)

const expiryLayout = "2 Jan 2006 15:04 MST"

type inboxWriter interface {
	CreateBatch(ctx context.Context, rows []models.Notification) (int64, error)
}

type memberLister interface {
	ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error)
}

type documentFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// ConsumerParams wires the signer inbox consumer.
type ConsumerParams struct {
	Name         string
	Repo         inboxWriter
	Members      memberLister
	Documents    documentFinder
	Subscription receiver
	Idempotency  *idempotency.Manager
	Decoders     *registry.Decoders
	Logger       *logger.Logger
}

// Consumer turns signing workflow events into inbox notifications.
type Consumer struct {
	name        string
	repo        inboxWriter
	members     memberLister
	documents   documentFinder
	sub         receiver
	idempotency *idempotency.Manager
	decoders    *registry.Decoders
	logg        *logger.Logger
}

// NewConsumer builds a signer inbox consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	switch {
	case strings.TrimSpace(params.Name) == "":
		return nil, fmt.Errorf("consumer name required")
	case params.Repo == nil:
		return nil, fmt.Errorf("notifications repository required")
	case params.Members == nil:
		return nil, fmt.Errorf("membership lister required")
	case params.Documents == nil:
		return nil, fmt.Errorf("document finder required")
	case params.Subscription == nil:
		return nil, fmt.Errorf("notification subscription required")
	case params.Idempotency == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = NewDecoders()
	}
	return &Consumer{
		name:        params.Name,
		repo:        params.Repo,
		members:     params.Members,
		documents:   params.Documents,
		sub:         params.Subscription,
		idempotency: params.Idempotency,
		decoders:    decoders,
		logg:        params.Logger,
	}, nil
}

// NewDecoders registers the payload versions the inbox understands.
func NewDecoders() *registry.Decoders {
	d := registry.NewDecoders()
	registry.Register[payloads.SigningRequestedEvent](d, enums.EventSigningRequested, 1)
	registry.Register[payloads.DocumentFullySignedEvent](d, enums.EventDocumentFullySigned, 1)
	registry.Register[payloads.SigningExpiredEvent](d, enums.EventSigningExpired, 1)
	registry.Register[payloads.CertificateRevokedEvent](d, enums.EventCertificateRevoked, 1)
	return d
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
		"consumer":   c.name,
	})

	if !c.decoders.Handles(eventType) {
		return processResult{ack: true}
	}

	// an undecodable message will not decode on redelivery either
	delivery, err := c.decoders.Decode(eventType, msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode message", err)
		return processResult{ack: true}
	}
	eventID := delivery.EventID
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	duplicate, err := c.idempotency.Begin(ctx, c.name, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	if duplicate {
		c.logg.Info(logCtx, "event already claimed")
		return processResult{ack: true}
	}

	if err := c.handlePayload(ctx, eventID, delivery.Payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if abandonErr := c.idempotency.Abandon(ctx, c.name, eventID); abandonErr != nil {
			c.logg.Warn(logCtx, "failed to release idempotency claim")
		}
		return processResult{nack: true}
	}
	// rows are committed; the (user_id, event_id) index covers a lost marker
	if err := c.idempotency.Complete(ctx, c.name, eventID); err != nil {
		c.logg.Warn(logCtx, "failed to record processed event")
	}
	return processResult{ack: true}
}

func (c *Consumer) handlePayload(ctx context.Context, eventID uuid.UUID, payload interface{}) error {
	var rows []models.Notification
	var err error
	switch p := payload.(type) {
	case payloads.SigningRequestedEvent:
		rows = signingRequestedRows(eventID, p)
	case payloads.DocumentFullySignedEvent:
		rows, err = c.fullySignedRows(ctx, eventID, p)
	case payloads.SigningExpiredEvent:
		rows, err = c.expiredRows(ctx, eventID, p)
	case payloads.CertificateRevokedEvent:
		rows, err = c.revokedRows(ctx, eventID, p)
	default:
		return fmt.Errorf("unsupported payload %T", payload)
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	written, err := c.repo.CreateBatch(ctx, rows)
	if err != nil {
		return err
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID.String(),
		"recipients": len(rows),
		"written":    written,
	}), "inbox notifications stored")
	return nil
}

func signingRequestedRows(eventID uuid.UUID, p payloads.SigningRequestedEvent) []models.Notification {
	if p.SignerID == uuid.Nil {
		return nil
	}
	message := fmt.Sprintf("You have been asked to sign a document. Your signing link expires %s.",
		p.TokenExpiresAt.UTC().Format(expiryLayout))
	if p.Mode == enums.SigningModeSequential {
		message += fmt.Sprintf(" You are signer %d in the signing order.", p.SignOrder)
	}
	if p.Message != nil {
		if note := strings.TrimSpace(*p.Message); note != "" {
			message += "\n\n" + note
		}
	}
	return []models.Notification{
		newRow(eventID, p.SignerID, p.DocumentID, enums.NotificationTypeSignatureRequested, "Signature requested", message),
	}
}

func (c *Consumer) fullySignedRows(ctx context.Context, eventID uuid.UUID, p payloads.DocumentFullySignedEvent) ([]models.Notification, error) {
	members, err := c.members.ListGroupMembers(ctx, p.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	message := fmt.Sprintf("All %d signers have signed. The completion certificate can now be generated.", p.TotalSigners)
	rows := make([]models.Notification, 0, len(members))
	for _, m := range members {
		rows = append(rows, newRow(eventID, m.UserID, p.DocumentID, enums.NotificationTypeDocumentCompleted, "Document fully signed", message))
	}
	return rows, nil
}

// expiredRows tells the signer and every group admin; an admin who is also the
// signer gets the signer's wording only.
func (c *Consumer) expiredRows(ctx context.Context, eventID uuid.UUID, p payloads.SigningExpiredEvent) ([]models.Notification, error) {
	members, err := c.members.ListGroupMembers(ctx, p.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	expiredAt := p.TokenExpiresAt.UTC().Format(expiryLayout)
	rows := []models.Notification{
		newRow(eventID, p.SignerID, p.DocumentID, enums.NotificationTypeSigningExpired, "Signing window expired",
			fmt.Sprintf("Your signing window closed on %s before you signed.", expiredAt)),
	}
	for _, m := range members {
		if m.UserID == p.SignerID || !m.Role.IsAdmin() {
			continue
		}
		rows = append(rows, newRow(eventID, m.UserID, p.DocumentID, enums.NotificationTypeSigningExpired, "Signing window expired",
			fmt.Sprintf("A signer did not sign before their window closed on %s.", expiredAt)))
	}
	return rows, nil
}

func (c *Consumer) revokedRows(ctx context.Context, eventID uuid.UUID, p payloads.CertificateRevokedEvent) ([]models.Notification, error) {
	doc, err := c.documents.FindByID(ctx, p.DocumentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	members, err := c.members.ListGroupMembers(ctx, doc.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	message := fmt.Sprintf("Certificate %s was revoked on %s. Reason: %s",
		p.CertificateID, p.RevokedAt.UTC().Format(expiryLayout), p.Reason)
	rows := make([]models.Notification, 0, len(members))
	for _, m := range members {
		rows = append(rows, newRow(eventID, m.UserID, p.DocumentID, enums.NotificationTypeCertificateRevoked, "Certificate revoked", message))
	}
	return rows, nil
}

func newRow(eventID, userID, documentID uuid.UUID, kind enums.NotificationType, title, message string) models.Notification {
	link := fmt.Sprintf("/documents/%s", documentID)
	docID := documentID
	return models.Notification{
		ID:         uuid.New(),
		UserID:     userID,
		EventID:    eventID,
		DocumentID: &docID,
		Type:       kind,
		Title:      title,
		Message:    message,
		Link:       &link,
		CreatedAt:  time.Now().UTC(),
	}
}
