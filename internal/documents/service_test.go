package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/internal/memberships"
	"github.com/coownly/esign-backend/pkg/config"
	dbpkg "github.com/coownly/esign-backend/pkg/db"
	"github.com/coownly/esign-backend/pkg/db/dbtest"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/scanner"
	"github.com/coownly/esign-backend/pkg/storage/memory"
)

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type fixture struct {
	conn     *gorm.DB
	svc      Service
	repo     *Repository
	store    *memory.Store
	outbox   *outbox.Repository
	groupID  uuid.UUID
	owner    uuid.UUID
	admin    uuid.UUID
	member   uuid.UUID
	outsider uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := dbtest.Open(t, "documents")
	f := &fixture{
		conn:     conn,
		repo:     NewRepository(conn),
		store:    memory.New(),
		outbox:   outbox.NewRepository(conn),
		groupID:  uuid.New(),
		owner:    uuid.New(),
		admin:    uuid.New(),
		member:   uuid.New(),
		outsider: uuid.New(),
	}

	members := memberships.NewRepository(conn)
	ctx := context.Background()
	for userID, role := range map[uuid.UUID]enums.GroupRole{
		f.owner:  enums.GroupRoleOwner,
		f.admin:  enums.GroupRoleAdmin,
		f.member: enums.GroupRoleMember,
	} {
		_, err := members.CreateMembership(ctx, f.groupID, userID, role)
		require.NoError(t, err)
	}

	svc, err := NewService(ServiceParams{
		Repo:           f.repo,
		Memberships:    members,
		Store:          f.store,
		URLSigner:      f.store,
		Scanner:        mustScanner(t),
		Outbox:         outbox.NewService(f.outbox, nil),
		Tx:             dbpkg.FromConn(conn),
		Locker:         locks.NewLocalLocker(),
		MaxUploadBytes: 1024,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func mustScanner(t *testing.T) *scanner.Scanner {
	t.Helper()
	scan, err := scanner.New(config.ScannerConfig{Mode: config.ScannerModeSignature})
	require.NoError(t, err)
	return scan
}

func pdfMeta(name string, data []byte) FileMeta {
	return FileMeta{
		FileName:     name,
		ContentType:  "application/pdf",
		SizeBytes:    int64(len(data)),
		DocumentType: enums.DocumentTypeOwnershipAgreement,
	}
}

func (f *fixture) create(t *testing.T, uploader uuid.UUID) *models.Document {
	t.Helper()
	doc, err := f.svc.CreateDocument(context.Background(), f.groupID, uploader, pdfMeta("deed.pdf", pdfBytes), pdfBytes)
	require.NoError(t, err)
	return doc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), "unexpected error: %v", err)
}

func TestCreateDocumentPersistsFirstVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDocument(ctx, f.groupID, f.member, pdfMeta("Co-ownership Deed.pdf", pdfBytes), pdfBytes)
	require.NoError(t, err)

	assert.Equal(t, enums.DocumentStatusDraft, doc.AggregateStatus)
	assert.Equal(t, f.member, doc.UploadedBy)
	assert.Equal(t, int64(len(pdfBytes)), doc.FileSizeBytes)
	versions, err := f.repo.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	wantKey := fmt.Sprintf("documents/%s/%s/v1-%s/Co-ownership-Deed.pdf", f.groupID, doc.ID, versions[0].ID)
	assert.Equal(t, wantKey, doc.CurrentStorageKey)
	assert.Equal(t, wantKey, versions[0].StorageKey)

	stored, err := f.store.Get(ctx, wantKey)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, stored)

	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.True(t, versions[0].IsCurrent)
	assert.Equal(t, contentHash(pdfBytes), versions[0].ContentSHA256)

	events, err := f.outbox.ListForAggregate(nil, enums.AggregateDocument, doc.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventDocumentUploaded, events[0].EventType)
}

func TestCreateDocumentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		meta FileMeta
		data []byte
		code pkgerrors.Code
	}{
		{name: "empty bytes", meta: pdfMeta("deed.pdf", nil), data: nil, code: pkgerrors.CodeValidation},
		{name: "size mismatch", meta: FileMeta{FileName: "deed.pdf", ContentType: "application/pdf", SizeBytes: 3, DocumentType: enums.DocumentTypeOther}, data: pdfBytes, code: pkgerrors.CodeValidation},
		{name: "missing name", meta: pdfMeta("  ", pdfBytes), data: pdfBytes, code: pkgerrors.CodeValidation},
		{name: "bad document type", meta: FileMeta{FileName: "a.pdf", ContentType: "application/pdf", SizeBytes: int64(len(pdfBytes)), DocumentType: "lease"}, data: pdfBytes, code: pkgerrors.CodeValidation},
		{name: "content type not allowed", meta: FileMeta{FileName: "a.png", ContentType: "image/png", SizeBytes: int64(len(pdfBytes)), DocumentType: enums.DocumentTypePurchaseContract}, data: pdfBytes, code: pkgerrors.CodeValidation},
		{name: "too large", meta: pdfMeta("big.pdf", make([]byte, 2048)), data: make([]byte, 2048), code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateDocument(ctx, f.groupID, f.owner, tc.meta, tc.data)
			requireCode(t, err, tc.code)
		})
	}
	assert.Empty(t, f.store.Keys())
}

func TestCreateDocumentRequiresMembership(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateDocument(context.Background(), f.groupID, f.outsider, pdfMeta("deed.pdf", pdfBytes), pdfBytes)
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Empty(t, f.store.Keys())
}

func TestCreateDocumentRejectsUnsafeContent(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)
	meta := FileMeta{FileName: "notes.txt", ContentType: "text/plain", SizeBytes: int64(len(payload)), DocumentType: enums.DocumentTypeOther}

	_, err := f.svc.CreateDocument(context.Background(), f.groupID, f.owner, meta, payload)
	requireCode(t, err, pkgerrors.CodeUnsafeContent)

	var count int64
	require.NoError(t, f.conn.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.store.Keys())
}

func TestCreateDocumentStorageFailureIsDependencyError(t *testing.T) {
	f := newFixture(t)
	f.store.PutErr = errors.New("bucket unavailable")

	_, err := f.svc.CreateDocument(context.Background(), f.groupID, f.owner, pdfMeta("deed.pdf", pdfBytes), pdfBytes)
	requireCode(t, err, pkgerrors.CodeDependency)

	var count int64
	require.NoError(t, f.conn.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadNewVersionFlipsCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.member)

	v2 := []byte("%PDF-1.7\n% second draft\n%%EOF\n")
	desc := "  fixed clause 4 "
	version, err := f.svc.UploadNewVersion(ctx, doc.ID, f.member, pdfMeta("deed-v2.pdf", v2), v2, &desc)
	require.NoError(t, err)
	assert.Equal(t, 2, version.VersionNumber)
	require.NotNil(t, version.ChangeDescription)
	assert.Equal(t, "fixed clause 4", *version.ChangeDescription)

	v3 := []byte("%PDF-1.7\n% admin edit\n%%EOF\n")
	_, err = f.svc.UploadNewVersion(ctx, doc.ID, f.admin, pdfMeta("deed-v3.pdf", v3), v3, nil)
	require.NoError(t, err)

	versions, err := f.svc.ListVersions(ctx, doc.ID, f.owner)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	current := 0
	for i, v := range versions {
		assert.Equal(t, 3-i, v.VersionNumber, "versions are newest first and contiguous")
		if v.IsCurrent {
			current++
			assert.Equal(t, 3, v.VersionNumber)
		}
	}
	assert.Equal(t, 1, current)

	reloaded, err := f.repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "deed-v3.pdf", reloaded.CurrentFileName)
	assert.Equal(t, int64(len(v3)), reloaded.FileSizeBytes)
	assert.Contains(t, reloaded.CurrentStorageKey, "/v3-")
	assert.Equal(t, int64(2), reloaded.LockVersion)

	events, err := f.outbox.ListForAggregate(nil, enums.AggregateDocument, doc.ID)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestUploadNewVersionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.admin)

	_, err := f.svc.UploadNewVersion(ctx, doc.ID, f.member, pdfMeta("x.pdf", pdfBytes), pdfBytes, nil)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UploadNewVersion(ctx, doc.ID, f.outsider, pdfMeta("x.pdf", pdfBytes), pdfBytes, nil)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.UploadNewVersion(ctx, doc.ID, f.owner, pdfMeta("x.pdf", nil), nil, nil)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UploadNewVersion(ctx, uuid.New(), f.owner, pdfMeta("x.pdf", pdfBytes), pdfBytes, nil)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUploadNewVersionRejectedOnceSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.owner)

	mode := enums.SigningModeParallel
	require.NoError(t, f.repo.UpdateSigningState(ctx, doc.ID, enums.DocumentStatusSentForSigning, &mode, doc.LockVersion))

	_, err := f.svc.UploadNewVersion(ctx, doc.ID, f.owner, pdfMeta("x.pdf", pdfBytes), pdfBytes, nil)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestUploadNewVersionConcurrentUploadsStayContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.owner)

	const uploads = 5
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("%%PDF-1.7\n%% upload %d\n%%%%EOF\n", i))
			_, err := f.svc.UploadNewVersion(ctx, doc.ID, f.owner, pdfMeta("deed.pdf", data), data, nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := f.repo.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, uploads+1)
	for i, v := range versions {
		assert.Equal(t, uploads+1-i, v.VersionNumber)
		assert.Equal(t, i == 0, v.IsCurrent)
	}
}

// Two API instances without redis hold separate in-process locks; the loser of
// the version race must leave the winner's object in place.
func TestUploadNewVersionRaceAcrossInstancesKeepsWinnerBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.owner)

	other, err := NewService(ServiceParams{
		Repo:           f.repo,
		Memberships:    memberships.NewRepository(f.conn),
		Store:          f.store,
		URLSigner:      f.store,
		Scanner:        mustScanner(t),
		Outbox:         outbox.NewService(f.outbox, nil),
		Tx:             dbpkg.FromConn(f.conn),
		Locker:         locks.NewLocalLocker(),
		MaxUploadBytes: 1024,
	})
	require.NoError(t, err)

	winner := []byte("%PDF-1.7\n% instance B\n%%EOF\n")
	loser := []byte("%PDF-1.7\n% instance A\n%%EOF\n")

	var (
		interleaved bool
		otherErr    error
	)
	// the first v2 write belongs to this instance; the other instance commits
	// its own v2 before that write lands
	f.store.OnPut = func(key string) {
		if interleaved || !strings.Contains(key, "/v2-") {
			return
		}
		interleaved = true
		_, otherErr = other.UploadNewVersion(ctx, doc.ID, f.owner, pdfMeta("deed.pdf", winner), winner, nil)
	}

	_, err = f.svc.UploadNewVersion(ctx, doc.ID, f.owner, pdfMeta("deed.pdf", loser), loser, nil)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.NoError(t, otherErr)

	reloaded, err := f.repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	stored, err := f.store.Get(ctx, reloaded.CurrentStorageKey)
	require.NoError(t, err, "committed version must still have its bytes")
	assert.Equal(t, winner, stored)

	versions, err := f.repo.ListVersions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	kept := map[string]bool{}
	for _, v := range versions {
		kept[v.StorageKey] = true
	}
	for _, key := range f.store.Keys() {
		assert.True(t, kept[key], "orphaned object %s left behind", key)
	}
}

func TestListVersionsRequiresMembership(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, f.owner)

	_, err := f.svc.ListVersions(context.Background(), doc.ID, f.outsider)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("fully signed documents are immutable", func(t *testing.T) {
		doc := f.create(t, f.owner)
		mode := enums.SigningModeParallel
		require.NoError(t, f.repo.UpdateSigningState(ctx, doc.ID, enums.DocumentStatusFullySigned, &mode, doc.LockVersion))

		err := f.svc.SoftDelete(ctx, doc.ID, f.owner)
		requireCode(t, err, pkgerrors.CodeConflict)
	})

	t.Run("member who did not upload is rejected", func(t *testing.T) {
		doc := f.create(t, f.owner)
		err := f.svc.SoftDelete(ctx, doc.ID, f.member)
		requireCode(t, err, pkgerrors.CodeForbidden)
	})

	t.Run("uploader deletes", func(t *testing.T) {
		doc := f.create(t, f.member)
		require.NoError(t, f.svc.SoftDelete(ctx, doc.ID, f.member))

		row, err := f.repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, row.IsDeleted)
		assert.NotNil(t, row.DeletedAt)

		_, err = f.svc.GetDocument(ctx, doc.ID, f.member)
		requireCode(t, err, pkgerrors.CodeNotFound)

		_, err = f.svc.UploadNewVersion(ctx, doc.ID, f.member, pdfMeta("x.pdf", pdfBytes), pdfBytes, nil)
		requireCode(t, err, pkgerrors.CodeNotFound)

		err = f.svc.SoftDelete(ctx, doc.ID, f.member)
		requireCode(t, err, pkgerrors.CodeNotFound)
	})
}

func TestDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, f.owner)

	link, err := f.svc.DownloadURL(ctx, doc.ID, f.member)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "memory://"+doc.CurrentStorageKey))
	assert.False(t, link.ExpiresAt.IsZero())

	_, err = f.svc.DownloadURL(ctx, doc.ID, f.outsider)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"deed.pdf":             "deed.pdf",
		"../../etc/passwd":     "passwd",
		`C:\docs\my file.pdf`:  "my-file.pdf",
		"  spaced name .pdf  ": "spaced-name-.pdf",
		"...":                  "",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
