package signing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/internal/tokens"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
)

const maxDeviceInfoLen = 512

type membershipChecker interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, enums.GroupRole, error)
}

type artifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type tokenService interface {
	Issue(documentID, signerID uuid.UUID) (tokens.Issued, error)
	Parse(token string, documentID uuid.UUID) (*tokens.Claims, error)
	Resolve(ctx context.Context, finder tokens.SignatureFinder, token string, documentID uuid.UUID) (*tokens.Resolution, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the signature workflow engine.
type Service interface {
	SendForSigning(ctx context.Context, input SendInput) (*SendResult, error)
	SignDocument(ctx context.Context, input SignInput) (*SignResult, error)
	GetStatus(ctx context.Context, documentID, requester uuid.UUID) (*StatusView, error)
}

// SendInput requests signatures from group members.
type SendInput struct {
	DocumentID uuid.UUID
	Requester  uuid.UUID
	SignerIDs  []uuid.UUID
	Mode       enums.SigningMode
	DueDate    *time.Time
	Message    *string
}

// IssuedSignature pairs a created signature with the token its signer needs.
// The token is returned once and never stored.
type IssuedSignature struct {
	Signature models.Signature
	Token     string
}

type SendResult struct {
	DocumentID      uuid.UUID
	AggregateStatus enums.DocumentStatus
	Mode            enums.SigningMode
	TokenExpiresAt  time.Time
	Signatures      []IssuedSignature
}

// SignInput is a signer's submission, authenticated by the bearer token.
type SignInput struct {
	DocumentID  uuid.UUID
	Token       string
	Artifact    []byte
	ContentType string
	IPAddress   string
	DeviceInfo  string
}

type SignResult struct {
	Signature       models.Signature
	AggregateStatus enums.DocumentStatus
	CompletedCount  int
	TotalSigners    int
}

// ServiceParams wires the workflow engine.
type ServiceParams struct {
	Documents           *documents.Repository
	Signatures          *Repository
	Memberships         membershipChecker
	Tokens              tokenService
	Artifacts           artifactStore
	Outbox              outboxEmitter
	Tx                  txRunner
	Locker              locks.Locker
	Metrics             *metrics.SigningMetrics
	Logger              *logger.Logger
	DefaultTokenTTL     time.Duration
	CollaboratorTimeout time.Duration
	Now                 func() time.Time
}

type service struct {
	docs        *documents.Repository
	sigs        *Repository
	memberships membershipChecker
	tokens      tokenService
	artifacts   artifactStore
	outbox      outboxEmitter
	tx          txRunner
	locker      locks.Locker
	metrics     *metrics.SigningMetrics
	logg        *logger.Logger
	defaultTTL  time.Duration
	timeout     time.Duration
	now         func() time.Time
}

// NewService validates the wiring and returns the workflow engine.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Documents == nil:
		return nil, fmt.Errorf("documents repository required")
	case params.Signatures == nil:
		return nil, fmt.Errorf("signatures repository required")
	case params.Memberships == nil:
		return nil, fmt.Errorf("memberships checker required")
	case params.Tokens == nil:
		return nil, fmt.Errorf("token service required")
	case params.Artifacts == nil:
		return nil, fmt.Errorf("artifact store required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.DefaultTokenTTL <= 0:
		return nil, fmt.Errorf("default token ttl must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "signing", Output: io.Discard})
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		docs:        params.Documents,
		sigs:        params.Signatures,
		memberships: params.Memberships,
		tokens:      params.Tokens,
		artifacts:   params.Artifacts,
		outbox:      params.Outbox,
		tx:          params.Tx,
		locker:      params.Locker,
		metrics:     params.Metrics,
		logg:        logg,
		defaultTTL:  params.DefaultTokenTTL,
		timeout:     params.CollaboratorTimeout,
		now:         now,
	}, nil
}

func (s *service) SendForSigning(ctx context.Context, input SendInput) (*SendResult, error) {
	if input.Requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	if input.DocumentID == uuid.Nil {
		return nil, validationError("document_id", "document id is required")
	}
	if !input.Mode.IsValid() {
		return nil, validationError("mode", "signing mode must be parallel or sequential")
	}
	signers, err := normalizeSigners(input.SignerIDs)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.defaultTTL)
	if input.DueDate != nil {
		if !input.DueDate.After(now) {
			return nil, validationError("due_date", "due date must be in the future")
		}
		expiresAt = input.DueDate.UTC()
	}
	message := trimOptional(input.Message)

	doc, err := s.loadDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	role, err := s.requireMember(ctx, doc.GroupID, input.Requester)
	if err != nil {
		return nil, err
	}
	if doc.UploadedBy != input.Requester && !role.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader or a group admin may send for signing").
			WithDetails(map[string]any{"document_id": doc.ID})
	}
	if doc.AggregateStatus != enums.DocumentStatusDraft {
		return nil, notDraftError(doc)
	}
	for _, signerID := range signers {
		if err := s.requireSigner(ctx, doc.GroupID, signerID); err != nil {
			return nil, err
		}
	}

	issued := make([]IssuedSignature, 0, len(signers))
	rows := make([]models.Signature, 0, len(signers))
	for i, signerID := range signers {
		token, err := s.tokens.Issue(doc.ID, signerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue signing token")
		}
		row := models.Signature{
			ID:                     uuid.New(),
			DocumentID:             doc.ID,
			SignerID:               signerID,
			SignOrder:              i + 1,
			SigningMode:            input.Mode,
			Status:                 enums.SignatureStatusPending,
			IssuedTokenFingerprint: token.Fingerprint,
			TokenExpiresAt:         expiresAt,
		}
		rows = append(rows, row)
		issued = append(issued, IssuedSignature{Signature: row, Token: token.Token})
	}

	mode := input.Mode
	err = locks.WithLock(ctx, s.locker, locks.DocumentKey(doc.ID.String()), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			docRepo := s.docs.WithTx(tx)
			sigRepo := s.sigs.WithTx(tx)

			locked, err := docRepo.FindByIDForUpdate(ctx, doc.ID)
			if err != nil {
				return err
			}
			if locked.IsDeleted {
				return notFoundError(doc.ID)
			}
			existing, err := sigRepo.CountByDocument(ctx, doc.ID)
			if err != nil {
				return err
			}
			if locked.AggregateStatus != enums.DocumentStatusDraft || existing > 0 {
				return notDraftError(locked)
			}
			if err := sigRepo.CreateBatch(ctx, rows); err != nil {
				return err
			}
			status := enums.DeriveDocumentStatus(len(rows), 0)
			if err := docRepo.UpdateSigningState(ctx, doc.ID, status, &mode, locked.LockVersion); err != nil {
				return err
			}
			for _, row := range rows {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventSigningRequested,
					AggregateType: enums.AggregateSignature,
					AggregateID:   row.ID,
					Actor:         &outbox.ActorRef{UserID: input.Requester, GroupID: &locked.GroupID},
					OccurredAt:    now,
					Data: payloads.SigningRequestedEvent{
						DocumentID:     doc.ID,
						GroupID:        locked.GroupID,
						SignatureID:    row.ID,
						SignerID:       row.SignerID,
						SignOrder:      row.SignOrder,
						Mode:           mode,
						TokenExpiresAt: row.TokenExpiresAt,
						Message:        message,
					},
				}); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapPersistenceError(err, doc.ID, "send for signing")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"document_id": doc.ID.String(),
		"user_id":     input.Requester.String(),
		"signers":     len(rows),
		"mode":        mode,
	})
	s.logg.Info(logCtx, "document sent for signing")

	return &SendResult{
		DocumentID:      doc.ID,
		AggregateStatus: enums.DocumentStatusSentForSigning,
		Mode:            mode,
		TokenExpiresAt:  expiresAt,
		Signatures:      issued,
	}, nil
}

func (s *service) SignDocument(ctx context.Context, input SignInput) (result *SignResult, err error) {
	defer func() {
		s.metrics.IncSignAttempt(outcomeFor(err))
	}()

	if input.DocumentID == uuid.Nil {
		return nil, validationError("document_id", "document id is required")
	}
	// Reject tokens that cannot belong to this document before taking the lock.
	if _, err := s.tokens.Parse(input.Token, input.DocumentID); err != nil {
		return nil, tokenError(err)
	}

	var (
		artifactKey string
		signed      models.Signature
		status      enums.DocumentStatus
		total       int
		completed   int
	)
	now := s.now().UTC()
	err = locks.WithLock(ctx, s.locker, locks.DocumentKey(input.DocumentID.String()), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			docRepo := s.docs.WithTx(tx)
			sigRepo := s.sigs.WithTx(tx)

			locked, err := docRepo.FindByIDForUpdate(ctx, input.DocumentID)
			if err != nil {
				return err
			}
			if locked.IsDeleted {
				return notFoundError(input.DocumentID)
			}

			resolved, err := s.tokens.Resolve(ctx, sigRepo, input.Token, input.DocumentID)
			if err != nil {
				return tokenError(err)
			}
			if len(input.Artifact) == 0 {
				return validationError("signature_artifact", "signature artifact is required")
			}

			sigs, err := sigRepo.ListByDocument(ctx, input.DocumentID)
			if err != nil {
				return err
			}
			if blocker := blockingSigner(*resolved.Signature, sigs); blocker != nil {
				return pkgerrors.New(pkgerrors.CodeOutOfOrder, "an earlier signer has not signed yet").
					WithDetails(map[string]any{
						"document_id":      input.DocumentID,
						"signer_id":        resolved.SignerID,
						"order":            resolved.Signature.SignOrder,
						"waiting_on_order": blocker.SignOrder,
					})
			}

			key := artifactStorageKey(input.DocumentID, resolved.SignatureID)
			stored, err := s.putArtifact(ctx, key, input.Artifact, input.ContentType)
			if err != nil {
				return err
			}
			artifactKey = stored

			sig := *resolved.Signature
			sig.Status = enums.SignatureStatusSigned
			sig.SignedAt = &now
			sig.SignatureArtifactKey = &stored
			sig.IPAddress = optionalString(input.IPAddress, 64)
			sig.DeviceInfo = optionalString(input.DeviceInfo, maxDeviceInfoLen)
			if err := sigRepo.MarkSigned(ctx, &sig); err != nil {
				return err
			}

			for i := range sigs {
				if sigs[i].ID == sig.ID {
					sigs[i] = sig
				}
			}
			total = len(sigs)
			completed = countSigned(sigs)
			status = enums.DeriveDocumentStatus(total, completed)
			if err := docRepo.UpdateSigningState(ctx, input.DocumentID, status, nil, locked.LockVersion); err != nil {
				return err
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDocumentSigned,
				AggregateType: enums.AggregateSignature,
				AggregateID:   sig.ID,
				Actor:         &outbox.ActorRef{UserID: sig.SignerID, GroupID: &locked.GroupID},
				OccurredAt:    now,
				Data: payloads.DocumentSignedEvent{
					DocumentID:      input.DocumentID,
					GroupID:         locked.GroupID,
					SignatureID:     sig.ID,
					SignerID:        sig.SignerID,
					SignedAt:        now,
					AggregateStatus: status,
					CompletedCount:  completed,
					TotalSigners:    total,
				},
			}); err != nil {
				return err
			}
			if status == enums.DocumentStatusFullySigned {
				if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventDocumentFullySigned,
					AggregateType: enums.AggregateDocument,
					AggregateID:   input.DocumentID,
					OccurredAt:    now,
					Data: payloads.DocumentFullySignedEvent{
						DocumentID:   input.DocumentID,
						GroupID:      locked.GroupID,
						TotalSigners: total,
						CompletedAt:  now,
					},
				}); err != nil {
					return err
				}
			}
			signed = sig
			return nil
		})
	})
	if err != nil {
		if artifactKey != "" {
			s.discardArtifact(ctx, artifactKey)
		}
		return nil, mapPersistenceError(err, input.DocumentID, "record signature")
	}

	if status == enums.DocumentStatusFullySigned {
		s.metrics.IncDocumentCompleted()
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"document_id":      input.DocumentID.String(),
		"signer_id":        signed.SignerID.String(),
		"aggregate_status": status,
	})
	s.logg.Info(logCtx, "signature recorded")

	return &SignResult{
		Signature:       signed,
		AggregateStatus: status,
		CompletedCount:  completed,
		TotalSigners:    total,
	}, nil
}

func (s *service) GetStatus(ctx context.Context, documentID, requester uuid.UUID) (*StatusView, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, doc.GroupID, requester); err != nil {
		return nil, err
	}
	sigs, err := s.sigs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list signatures")
	}
	view := BuildStatus(documentID, sigs, s.now())
	return &view, nil
}

func (s *service) loadDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	if documentID == uuid.Nil {
		return nil, validationError("document_id", "document id is required")
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(documentID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document")
	}
	if doc.IsDeleted {
		return nil, notFoundError(documentID)
	}
	return doc, nil
}

func (s *service) requireMember(ctx context.Context, groupID, userID uuid.UUID) (enums.GroupRole, error) {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	ok, role, err := s.memberships.IsMember(callCtx, groupID, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check group membership")
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "requester is not a member of the group").
			WithDetails(map[string]any{"group_id": groupID})
	}
	return role, nil
}

// requireSigner reports unknown signers as NotFound so callers can tell which
// id to fix.
func (s *service) requireSigner(ctx context.Context, groupID, signerID uuid.UUID) error {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	ok, _, err := s.memberships.IsMember(callCtx, groupID, signerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check signer membership")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "signer is not a member of the group").
			WithDetails(map[string]any{"signer_id": signerID, "group_id": groupID})
	}
	return nil
}

func (s *service) putArtifact(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	stored, err := s.artifacts.Put(callCtx, key, data, contentType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store signature artifact")
	}
	return stored, nil
}

func (s *service) discardArtifact(ctx context.Context, key string) {
	callCtx, cancel := s.collaboratorContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.artifacts.Delete(callCtx, key); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "storage_key", key), "failed to discard signature artifact", err)
	}
}

func (s *service) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func artifactStorageKey(documentID, signatureID uuid.UUID) string {
	return fmt.Sprintf("signatures/%s/%s", documentID, signatureID)
}

func normalizeSigners(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, validationError("signer_ids", "at least one signer is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, validationError("signer_ids", "signer ids must be valid")
		}
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "signer listed more than once").
				WithDetails(map[string]any{"field": "signer_ids", "signer_id": id})
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalString(value string, limit int) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = strings.TrimSpace(trimmed[:cut])
	}
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
