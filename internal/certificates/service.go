package certificates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
)

const (
	minSealKeyLen   = 32
	maxReasonLength = 500

	resultValid        = "valid"
	resultHashMismatch = "hash_mismatch"
	resultExpired      = "expired"
	resultRevoked      = "revoked"
	resultTampered     = "tampered"
)

type membershipChecker interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, enums.GroupRole, error)
}

type signatureLister interface {
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.Signature, error)
}

type fileReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues, verifies and revokes completion certificates.
type Service interface {
	GenerateCertificate(ctx context.Context, documentID, requester uuid.UUID) (*models.Certificate, error)
	VerifyCertificate(ctx context.Context, certificateID string, suppliedHash *string) (*Verification, error)
	RevokeCertificate(ctx context.Context, certificateID, reason string, actor uuid.UUID) (*models.Certificate, error)
	GetCertificate(ctx context.Context, certificateID string) (*models.Certificate, error)
}

// Verification always carries every diagnostic flag so callers can tell why a
// certificate failed.
type Verification struct {
	CertificateID    string     `json:"certificate_id"`
	DocumentID       uuid.UUID  `json:"document_id"`
	IsValid          bool       `json:"is_valid"`
	HashMatches      bool       `json:"hash_matches"`
	IsExpired        bool       `json:"is_expired"`
	IsRevoked        bool       `json:"is_revoked"`
	SealIntact       bool       `json:"seal_intact"`
	RevocationReason *string    `json:"revocation_reason,omitempty"`
	GeneratedAt      time.Time  `json:"generated_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

type ServiceParams struct {
	Documents           *documents.Repository
	Signatures          signatureLister
	Certificates        *Repository
	Memberships         membershipChecker
	Files               fileReader
	Outbox              outboxEmitter
	Tx                  txRunner
	Locker              locks.Locker
	Metrics             *metrics.SigningMetrics
	Logger              *logger.Logger
	SealKey             []byte
	CertificateTTL      time.Duration
	CollaboratorTimeout time.Duration
	Now                 func() time.Time
}

type service struct {
	docs        *documents.Repository
	sigs        signatureLister
	certs       *Repository
	memberships membershipChecker
	files       fileReader
	outbox      outboxEmitter
	tx          txRunner
	locker      locks.Locker
	metrics     *metrics.SigningMetrics
	logg        *logger.Logger
	sealKey     []byte
	ttl         time.Duration
	timeout     time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Documents == nil:
		return nil, fmt.Errorf("documents repository required")
	case params.Signatures == nil:
		return nil, fmt.Errorf("signature lister required")
	case params.Certificates == nil:
		return nil, fmt.Errorf("certificates repository required")
	case params.Memberships == nil:
		return nil, fmt.Errorf("memberships checker required")
	case params.Files == nil:
		return nil, fmt.Errorf("file reader required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case len(params.SealKey) < minSealKeyLen:
		return nil, fmt.Errorf("certificate seal key must be at least %d bytes", minSealKeyLen)
	case params.CertificateTTL <= 0:
		return nil, fmt.Errorf("certificate ttl must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "certificates", Output: io.Discard})
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		docs:        params.Documents,
		sigs:        params.Signatures,
		certs:       params.Certificates,
		memberships: params.Memberships,
		files:       params.Files,
		outbox:      params.Outbox,
		tx:          params.Tx,
		locker:      params.Locker,
		metrics:     params.Metrics,
		logg:        logg,
		sealKey:     append([]byte(nil), params.SealKey...),
		ttl:         params.CertificateTTL,
		timeout:     params.CollaboratorTimeout,
		now:         now,
	}, nil
}

// GenerateCertificate returns the document's certificate, creating it on the
// first call once every signer has signed.
func (s *service) GenerateCertificate(ctx context.Context, documentID, requester uuid.UUID) (*models.Certificate, error) {
	if requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, doc.GroupID, requester); err != nil {
		return nil, err
	}

	existing, err := s.certs.FindByDocumentID(ctx, doc.ID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load certificate")
	}

	if doc.AggregateStatus != enums.DocumentStatusFullySigned {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "document is not fully signed").
			WithDetails(map[string]any{"document_id": doc.ID, "aggregate_status": doc.AggregateStatus})
	}

	sigs, err := s.sigs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list signatures")
	}
	summary, err := encodeSummary(sigs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode signer summary")
	}
	content, err := s.readContent(ctx, doc.CurrentStorageKey)
	if err != nil {
		return nil, err
	}
	certificateID, err := newCertificateID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate certificate id")
	}

	generatedAt := s.now().UTC().Truncate(time.Microsecond)
	cert := &models.Certificate{
		ID:                  uuid.New(),
		DocumentID:          doc.ID,
		CertificateID:       certificateID,
		DocumentContentHash: contentHash(content),
		FileName:            doc.CurrentFileName,
		TotalSigners:        len(sigs),
		SignerSummary:       summary,
		GeneratedBy:         requester,
		GeneratedAt:         generatedAt,
		ExpiresAt:           generatedAt.Add(s.ttl),
	}
	if cert.Seal, err = computeSeal(s.sealKey, cert); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal certificate")
	}

	created := true
	err = locks.WithLock(ctx, s.locker, locks.DocumentKey(doc.ID.String()), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.certs.WithTx(tx)
			current, err := repo.FindByDocumentID(ctx, doc.ID)
			if err == nil {
				cert = current
				created = false
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := repo.Create(ctx, cert); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCertificateGenerated,
				AggregateType: enums.AggregateCertificate,
				AggregateID:   cert.ID,
				Actor:         &outbox.ActorRef{UserID: requester, GroupID: &doc.GroupID},
				OccurredAt:    generatedAt,
				Data: payloads.CertificateGeneratedEvent{
					CertificateID:       cert.CertificateID,
					DocumentID:          doc.ID,
					GroupID:             doc.GroupID,
					DocumentContentHash: cert.DocumentContentHash,
					ExpiresAt:           cert.ExpiresAt,
				},
			})
		})
	})
	if err != nil {
		return nil, mapPersistenceError(err, "generate certificate")
	}

	if created {
		s.metrics.IncCertificate("generated")
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"document_id":    doc.ID.String(),
			"certificate_id": cert.CertificateID,
			"user_id":        requester.String(),
		})
		s.logg.Info(logCtx, "certificate generated")
	}
	return cert, nil
}

// VerifyCertificate needs nothing but the certificate row.
func (s *service) VerifyCertificate(ctx context.Context, certificateID string, suppliedHash *string) (*Verification, error) {
	cert, err := s.GetCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	v := &Verification{
		CertificateID:    cert.CertificateID,
		DocumentID:       cert.DocumentID,
		HashMatches:      hashMatches(suppliedHash, cert.DocumentContentHash),
		IsExpired:        now.After(cert.ExpiresAt),
		IsRevoked:        cert.IsRevoked,
		SealIntact:       sealIntact(s.sealKey, cert),
		RevocationReason: cert.RevocationReason,
		GeneratedAt:      cert.GeneratedAt,
		ExpiresAt:        cert.ExpiresAt,
		RevokedAt:        cert.RevokedAt,
	}
	v.IsValid = v.HashMatches && !v.IsExpired && !v.IsRevoked && v.SealIntact
	s.metrics.IncVerification(verificationResult(v))
	if !v.SealIntact {
		s.logg.Warn(s.logg.WithField(ctx, "certificate_id", cert.CertificateID), "certificate seal mismatch")
	}
	return v, nil
}

// RevokeCertificate is idempotent. The first reason recorded wins.
func (s *service) RevokeCertificate(ctx context.Context, certificateID, reason string, actor uuid.UUID) (*models.Certificate, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revocation reason is required").
			WithDetails(map[string]any{"field": "reason"})
	}
	if len(reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revocation reason is too long").
			WithDetails(map[string]any{"field": "reason", "max": maxReasonLength})
	}
	cert, err := s.GetCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.IsRevoked {
		return cert, nil
	}

	revokedAt := s.now().UTC()
	var changed bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.certs.WithTx(tx)
		var err error
		changed, err = repo.Revoke(ctx, cert.ID, reason, revokedAt)
		if err != nil || !changed {
			return err
		}
		var actorRef *outbox.ActorRef
		if actor != uuid.Nil {
			actorRef = &outbox.ActorRef{UserID: actor}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCertificateRevoked,
			AggregateType: enums.AggregateCertificate,
			AggregateID:   cert.ID,
			Actor:         actorRef,
			OccurredAt:    revokedAt,
			Data: payloads.CertificateRevokedEvent{
				CertificateID: cert.CertificateID,
				DocumentID:    cert.DocumentID,
				Reason:        reason,
				RevokedAt:     revokedAt,
			},
		})
	})
	if err != nil {
		return nil, mapPersistenceError(err, "revoke certificate")
	}

	if changed {
		s.metrics.IncCertificate("revoked")
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"certificate_id": cert.CertificateID,
			"document_id":    cert.DocumentID.String(),
			"reason":         reason,
		})
		s.logg.Info(logCtx, "certificate revoked")
	}
	return s.GetCertificate(ctx, certificateID)
}

func (s *service) GetCertificate(ctx context.Context, certificateID string) (*models.Certificate, error) {
	certificateID = strings.ToUpper(strings.TrimSpace(certificateID))
	if certificateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "certificate id is required").
			WithDetails(map[string]any{"field": "certificate_id"})
	}
	cert, err := s.certs.FindByCertificateID(ctx, certificateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found").
			WithDetails(map[string]any{"certificate_id": certificateID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load certificate")
	}
	return cert, nil
}

func (s *service) loadDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	if documentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id is required").
			WithDetails(map[string]any{"field": "document_id"})
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && doc.IsDeleted) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
			WithDetails(map[string]any{"document_id": documentID})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document")
	}
	return doc, nil
}

func (s *service) requireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	ok, _, err := s.memberships.IsMember(callCtx, groupID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check group membership")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeForbidden, "requester is not a member of the group").
			WithDetails(map[string]any{"group_id": groupID})
	}
	return nil
}

func (s *service) readContent(ctx context.Context, key string) ([]byte, error) {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	data, err := s.files.Get(callCtx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read document content")
	}
	return data, nil
}

func (s *service) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func mapPersistenceError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, locks.ErrNotAcquired) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "document is being modified, retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func verificationResult(v *Verification) string {
	switch {
	case v.IsValid:
		return resultValid
	case !v.SealIntact:
		return resultTampered
	case v.IsRevoked:
		return resultRevoked
	case v.IsExpired:
		return resultExpired
	default:
		return resultHashMismatch
	}
}
