package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
	"github.com/coownly/esign-backend/pkg/scanner"
)

const defaultDownloadURLTTL = 5 * time.Minute

type membershipChecker interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, enums.GroupRole, error)
}

type fileStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type urlSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type contentScanner interface {
	Scan(ctx context.Context, data []byte) (scanner.Result, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the document store operations.
type Service interface {
	CreateDocument(ctx context.Context, groupID, requester uuid.UUID, meta FileMeta, data []byte) (*models.Document, error)
	UploadNewVersion(ctx context.Context, documentID, requester uuid.UUID, meta FileMeta, data []byte, changeDescription *string) (*models.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID, requester uuid.UUID) ([]models.DocumentVersion, error)
	SoftDelete(ctx context.Context, documentID, requester uuid.UUID) error
	GetDocument(ctx context.Context, documentID, requester uuid.UUID) (*models.Document, error)
	DownloadURL(ctx context.Context, documentID, requester uuid.UUID) (*DownloadLink, error)
}

// FileMeta describes an upload. SizeBytes must equal the payload length.
type FileMeta struct {
	FileName     string
	ContentType  string
	SizeBytes    int64
	DocumentType enums.DocumentType
}

// DownloadLink is a short-lived URL for the current version's bytes.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ServiceParams wires the document store's collaborators.
type ServiceParams struct {
	Repo                *Repository
	Memberships         membershipChecker
	Store               fileStore
	URLSigner           urlSigner
	Scanner             contentScanner
	Outbox              outboxEmitter
	Tx                  txRunner
	Locker              locks.Locker
	Logger              *logger.Logger
	MaxUploadBytes      int64
	CollaboratorTimeout time.Duration
	DownloadURLTTL      time.Duration
	Now                 func() time.Time
}

type service struct {
	repo        *Repository
	memberships membershipChecker
	store       fileStore
	signer      urlSigner
	scanner     contentScanner
	outbox      outboxEmitter
	tx          txRunner
	locker      locks.Locker
	logg        *logger.Logger
	maxUpload   int64
	timeout     time.Duration
	downloadTTL time.Duration
	now         func() time.Time
}

// NewService validates the wiring and returns the document store.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("documents repository required")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("memberships checker required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("file store required")
	}
	if params.Scanner == nil {
		return nil, fmt.Errorf("content scanner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "documents", Output: io.Discard})
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	downloadTTL := params.DownloadURLTTL
	if downloadTTL <= 0 {
		downloadTTL = defaultDownloadURLTTL
	}
	return &service{
		repo:        params.Repo,
		memberships: params.Memberships,
		store:       params.Store,
		signer:      params.URLSigner,
		scanner:     params.Scanner,
		outbox:      params.Outbox,
		tx:          params.Tx,
		locker:      params.Locker,
		logg:        logg,
		maxUpload:   params.MaxUploadBytes,
		timeout:     params.CollaboratorTimeout,
		downloadTTL: downloadTTL,
		now:         now,
	}, nil
}

func (s *service) CreateDocument(ctx context.Context, groupID, requester uuid.UUID, meta FileMeta, data []byte) (*models.Document, error) {
	if groupID == uuid.Nil {
		return nil, validationError("group_id", "group id is required")
	}
	if requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	if !meta.DocumentType.IsValid() {
		return nil, validationError("document_type", "invalid document type")
	}
	contentType, err := s.validateUpload(meta, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, groupID, requester); err != nil {
		return nil, err
	}
	if err := s.scan(ctx, data); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	documentID := uuid.New()
	fileName := strings.TrimSpace(meta.FileName)
	versionID := uuid.New()
	key := buildStorageKey(groupID, documentID, versionID, 1, fileName)
	storedKey, err := s.put(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:                documentID,
		GroupID:           groupID,
		DocumentType:      meta.DocumentType,
		CurrentFileName:   fileName,
		CurrentStorageKey: storedKey,
		ContentType:       contentType,
		FileSizeBytes:     int64(len(data)),
		AggregateStatus:   enums.DocumentStatusDraft,
		UploadedBy:        requester,
	}
	version := &models.DocumentVersion{
		ID:            versionID,
		DocumentID:    documentID,
		VersionNumber: 1,
		StorageKey:    storedKey,
		FileName:      fileName,
		FileSizeBytes: int64(len(data)),
		ContentType:   contentType,
		ContentSHA256: contentHash(data),
		UploadedBy:    requester,
		UploadedAt:    now,
		IsCurrent:     true,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, doc); err != nil {
			return err
		}
		if err := repo.CreateVersion(ctx, version); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDocumentUploaded,
			AggregateType: enums.AggregateDocument,
			AggregateID:   documentID,
			Actor:         &outbox.ActorRef{UserID: requester, GroupID: &groupID},
			OccurredAt:    now,
			Data: payloads.DocumentUploadedEvent{
				DocumentID:    documentID,
				GroupID:       groupID,
				DocumentType:  meta.DocumentType,
				VersionNumber: 1,
				FileName:      fileName,
				UploadedBy:    requester,
			},
		})
	})
	if err != nil {
		s.discard(ctx, storedKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist document")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"document_id": documentID.String(),
		"group_id":    groupID.String(),
		"user_id":     requester.String(),
	})
	s.logg.Info(logCtx, "document created")
	return doc, nil
}

func (s *service) UploadNewVersion(ctx context.Context, documentID, requester uuid.UUID, meta FileMeta, data []byte, changeDescription *string) (*models.DocumentVersion, error) {
	if requester == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, doc, requester); err != nil {
		return nil, err
	}
	if meta.DocumentType != "" && meta.DocumentType != doc.DocumentType {
		return nil, validationError("document_type", "document type cannot change between versions")
	}
	contentType, err := s.validateUpload(FileMeta{
		FileName:     meta.FileName,
		ContentType:  meta.ContentType,
		SizeBytes:    meta.SizeBytes,
		DocumentType: doc.DocumentType,
	}, data)
	if err != nil {
		return nil, err
	}
	if doc.AggregateStatus != enums.DocumentStatusDraft {
		return nil, notDraftError(doc)
	}
	if err := s.scan(ctx, data); err != nil {
		return nil, err
	}
	if changeDescription != nil {
		trimmed := strings.TrimSpace(*changeDescription)
		if trimmed == "" {
			changeDescription = nil
		} else {
			changeDescription = &trimmed
		}
	}

	var version *models.DocumentVersion
	err = locks.WithLock(ctx, s.locker, locks.DocumentKey(documentID.String()), func() error {
		latest, err := s.repo.MaxVersionNumber(ctx, documentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load latest version")
		}
		nextVersion := latest + 1
		fileName := strings.TrimSpace(meta.FileName)
		versionID := uuid.New()
		storedKey, err := s.put(ctx, buildStorageKey(doc.GroupID, documentID, versionID, nextVersion, fileName), data, contentType)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			locked, err := repo.FindByIDForUpdate(ctx, documentID)
			if err != nil {
				return err
			}
			if locked.IsDeleted {
				return notFoundError(documentID)
			}
			if locked.AggregateStatus != enums.DocumentStatusDraft {
				return notDraftError(locked)
			}
			current, err := repo.MaxVersionNumber(ctx, documentID)
			if err != nil {
				return err
			}
			if current != latest {
				return pkgerrors.New(pkgerrors.CodeConflict, "a newer version was uploaded concurrently").
					WithDetails(map[string]any{"document_id": documentID})
			}
			if err := repo.ClearCurrentVersion(ctx, documentID); err != nil {
				return err
			}
			version = &models.DocumentVersion{
				ID:                versionID,
				DocumentID:        documentID,
				VersionNumber:     nextVersion,
				StorageKey:        storedKey,
				FileName:          fileName,
				FileSizeBytes:     int64(len(data)),
				ContentType:       contentType,
				ContentSHA256:     contentHash(data),
				UploadedBy:        requester,
				UploadedAt:        now,
				ChangeDescription: changeDescription,
				IsCurrent:         true,
			}
			if err := repo.CreateVersion(ctx, version); err != nil {
				return err
			}
			locked.CurrentFileName = fileName
			locked.CurrentStorageKey = storedKey
			locked.ContentType = contentType
			locked.FileSizeBytes = int64(len(data))
			if err := repo.UpdateCurrentFile(ctx, locked, locked.LockVersion); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDocumentVersioned,
				AggregateType: enums.AggregateDocument,
				AggregateID:   documentID,
				Actor:         &outbox.ActorRef{UserID: requester, GroupID: &locked.GroupID},
				OccurredAt:    now,
				Data: payloads.DocumentVersionedEvent{
					DocumentID:        documentID,
					GroupID:           locked.GroupID,
					VersionNumber:     nextVersion,
					FileName:          fileName,
					UploadedBy:        requester,
					ChangeDescription: changeDescription,
				},
			})
		})
		if err != nil {
			s.discard(ctx, storedKey)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, mapPersistenceError(err, documentID, "persist document version")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"document_id": documentID.String(),
		"version":     version.VersionNumber,
		"user_id":     requester.String(),
	})
	s.logg.Info(logCtx, "document version uploaded")
	return version, nil
}

func (s *service) ListVersions(ctx context.Context, documentID, requester uuid.UUID) ([]models.DocumentVersion, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, doc.GroupID, requester); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, documentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list document versions")
	}
	return versions, nil
}

func (s *service) SoftDelete(ctx context.Context, documentID, requester uuid.UUID) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.requireManager(ctx, doc, requester); err != nil {
		return err
	}
	if doc.AggregateStatus == enums.DocumentStatusFullySigned {
		return fullySignedError(documentID)
	}

	now := s.now().UTC()
	err = locks.WithLock(ctx, s.locker, locks.DocumentKey(documentID.String()), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			locked, err := repo.FindByIDForUpdate(ctx, documentID)
			if err != nil {
				return err
			}
			if locked.IsDeleted {
				return notFoundError(documentID)
			}
			if locked.AggregateStatus == enums.DocumentStatusFullySigned {
				return fullySignedError(documentID)
			}
			if err := repo.MarkDeleted(ctx, documentID, now, locked.LockVersion); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDocumentDeleted,
				AggregateType: enums.AggregateDocument,
				AggregateID:   documentID,
				Actor:         &outbox.ActorRef{UserID: requester, GroupID: &locked.GroupID},
				OccurredAt:    now,
				Data: payloads.DocumentDeletedEvent{
					DocumentID: documentID,
					GroupID:    locked.GroupID,
					DeletedBy:  requester,
					DeletedAt:  now,
				},
			})
		})
	})
	if err != nil {
		return mapPersistenceError(err, documentID, "soft delete document")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"document_id": documentID.String(),
		"user_id":     requester.String(),
	})
	s.logg.Info(logCtx, "document soft deleted")
	return nil
}

func (s *service) GetDocument(ctx context.Context, documentID, requester uuid.UUID) (*models.Document, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, doc.GroupID, requester); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *service) DownloadURL(ctx context.Context, documentID, requester uuid.UUID) (*DownloadLink, error) {
	doc, err := s.GetDocument(ctx, documentID, requester)
	if err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "downloads are not configured")
	}
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	url, err := s.signer.SignedURL(callCtx, doc.CurrentStorageKey, s.downloadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url").
			WithDetails(map[string]any{"document_id": documentID})
	}
	return &DownloadLink{URL: url, ExpiresAt: s.now().UTC().Add(s.downloadTTL)}, nil
}

func (s *service) validateUpload(meta FileMeta, data []byte) (string, error) {
	if strings.TrimSpace(meta.FileName) == "" || sanitizeFileName(meta.FileName) == "" {
		return "", validationError("file_name", "file_name is required")
	}
	if len(data) == 0 {
		return "", validationError("file", "file bytes are required")
	}
	if meta.SizeBytes != int64(len(data)) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "declared size does not match file size").
			WithDetails(map[string]any{"field": "size_bytes", "declared": meta.SizeBytes, "actual": len(data)})
	}
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file must be at most %d bytes", s.maxUpload)).
			WithDetails(map[string]any{"field": "size_bytes"})
	}
	contentType, err := normalizeContentType(meta.ContentType)
	if err != nil {
		return "", validationError("content_type", err.Error())
	}
	if !isAllowedContentType(meta.DocumentType, contentType) {
		return "", validationError("content_type", fmt.Sprintf("%s documents must be %s", meta.DocumentType, allowedContentDescription(meta.DocumentType)))
	}
	return contentType, nil
}

func (s *service) loadDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	if documentID == uuid.Nil {
		return nil, validationError("document_id", "document id is required")
	}
	doc, err := s.repo.FindByID(ctx, documentID)
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

func (s *service) requireMember(ctx context.Context, groupID, requester uuid.UUID) (enums.GroupRole, error) {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	ok, role, err := s.memberships.IsMember(callCtx, groupID, requester)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check group membership")
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "requester is not a member of the group").
			WithDetails(map[string]any{"group_id": groupID})
	}
	return role, nil
}

// requireManager admits the uploader and group admins.
func (s *service) requireManager(ctx context.Context, doc *models.Document, requester uuid.UUID) error {
	role, err := s.requireMember(ctx, doc.GroupID, requester)
	if err != nil {
		return err
	}
	if doc.UploadedBy == requester || role.IsAdmin() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader or a group admin may change this document").
		WithDetails(map[string]any{"document_id": doc.ID})
}

func (s *service) scan(ctx context.Context, data []byte) error {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	result, err := s.scanner.Scan(callCtx, data)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan upload")
	}
	if !result.Clean {
		return pkgerrors.New(pkgerrors.CodeUnsafeContent, "upload was rejected by the content scanner").
			WithDetails(map[string]any{"reason": result.Reason})
	}
	return nil
}

func (s *service) put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	callCtx, cancel := s.collaboratorContext(ctx)
	defer cancel()
	stored, err := s.store.Put(callCtx, key, data, contentType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store document bytes")
	}
	return stored, nil
}

// discard removes an object whose metadata never committed.
func (s *service) discard(ctx context.Context, key string) {
	callCtx, cancel := s.collaboratorContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.store.Delete(callCtx, key); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "storage_key", key), "failed to discard orphaned object", err)
	}
}

func (s *service) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
