package main

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coownly/esign-backend/internal/certificates"
	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/internal/memberships"
	"github.com/coownly/esign-backend/internal/notifications"
	"github.com/coownly/esign-backend/internal/signing"
	"github.com/coownly/esign-backend/internal/tokens"
	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/db"
	"github.com/coownly/esign-backend/pkg/keys"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/metrics"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/scanner"
	"github.com/coownly/esign-backend/pkg/storage/gcs"
	"github.com/coownly/esign-backend/pkg/storage/minio"
)

// objectStore is what every storage driver offers the services.
type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

func newObjectStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (objectStore, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Storage.Driver), config.StorageDriverMinio) {
		client, err := minio.NewClient(ctx, cfg.Storage, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := gcs.NewClient(ctx, cfg.Storage, cfg.GCP, logg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type services struct {
	documents     documents.Service
	signing       signing.Service
	certificates  certificates.Service
	notifications notifications.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, store objectStore, locker locks.Locker) (*services, error) {
	keySet, err := keys.DeriveSet(cfg.Signing.TokenSecret)
	if err != nil {
		return nil, err
	}
	tokenService, err := tokens.NewService(tokens.ServiceParams{
		Key:    keySet.SigningToken,
		Issuer: cfg.Signing.Issuer,
	})
	if err != nil {
		return nil, err
	}
	contentScanner, err := scanner.New(cfg.Scanner)
	if err != nil {
		return nil, err
	}

	var (
		conn          = dbClient.DB()
		signingStats  = metrics.NewSigningMetrics(prometheus.DefaultRegisterer)
		outboxService = outbox.NewService(outbox.NewRepository(conn), logg)
		members       = memberships.NewRepository(conn)
		docs          = documents.NewRepository(conn)
		signatures    = signing.NewRepository(conn)
		out           = &services{}
	)

	out.documents, err = documents.NewService(documents.ServiceParams{
		Repo:                docs,
		Memberships:         members,
		Store:               store,
		URLSigner:           store,
		Scanner:             contentScanner,
		Outbox:              outboxService,
		Tx:                  dbClient,
		Locker:              locker,
		Logger:              logg,
		MaxUploadBytes:      cfg.Signing.MaxUploadBytes(),
		CollaboratorTimeout: cfg.Signing.CollaboratorTimeout,
	})
	if err != nil {
		return nil, err
	}

	out.signing, err = signing.NewService(signing.ServiceParams{
		Documents:           docs,
		Signatures:          signatures,
		Memberships:         members,
		Tokens:              tokenService,
		Artifacts:           store,
		Outbox:              outboxService,
		Tx:                  dbClient,
		Locker:              locker,
		Metrics:             signingStats,
		Logger:              logg,
		DefaultTokenTTL:     cfg.Signing.DefaultTokenTTL,
		CollaboratorTimeout: cfg.Signing.CollaboratorTimeout,
	})
	if err != nil {
		return nil, err
	}

	out.certificates, err = certificates.NewService(certificates.ServiceParams{
		Documents:           docs,
		Signatures:          signatures,
		Certificates:        certificates.NewRepository(conn),
		Memberships:         members,
		Files:               store,
		Outbox:              outboxService,
		Tx:                  dbClient,
		Locker:              locker,
		Metrics:             signingStats,
		Logger:              logg,
		SealKey:             keySet.CertificateSeal,
		CertificateTTL:      cfg.Signing.CertificateTTL,
		CollaboratorTimeout: cfg.Signing.CollaboratorTimeout,
	})
	if err != nil {
		return nil, err
	}

	out.notifications, err = notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	return out, nil
}
