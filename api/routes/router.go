package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coownly/esign-backend/api/controllers"
	"github.com/coownly/esign-backend/api/middleware"
	"github.com/coownly/esign-backend/internal/certificates"
	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/notifications"
	"github.com/coownly/esign-backend/internal/signing"
	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/db"
	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/logger"
	"github.com/coownly/esign-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	storageP controllers.Pinger,
	documentService documents.Service,
	signingService signing.Service,
	certificateService certificates.Service,
	notificationService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// a nil *redis.Client must reach the middleware as a nil interface
	var (
		idempotencyStore middleware.IdempotencyStore
		rateStore        middleware.RateLimitStore
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		rateStore = redisClient
		redisPinger = redisClient
	}

	signPolicy := middleware.NewRateLimitPolicy(
		"sign",
		cfg.RateLimit.PublicWindow,
		cfg.RateLimit.PublicIP,
		cfg.RateLimit.PublicSubject,
		"documentId",
	)
	verifyPolicy := middleware.NewRateLimitPolicy(
		"verify",
		cfg.RateLimit.PublicWindow,
		cfg.RateLimit.PublicIP,
		cfg.RateLimit.PublicSubject,
		"certificateId",
	)
	maxUpload := cfg.Signing.MaxUploadBytes()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":      dbP,
			"redis":   redisPinger,
			"storage": storageP,
		}))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.With(middleware.RateLimit(signPolicy, rateStore, logg)).
				Post("/documents/{documentId}/sign", controllers.PublicSignDocument(signingService, maxUpload, logg))
			r.With(middleware.RateLimit(verifyPolicy, rateStore, logg)).
				Get("/certificates/{certificateId}/verify", controllers.PublicCertificateVerify(certificateService, logg))
			r.With(middleware.RateLimit(verifyPolicy, rateStore, logg)).
				Get("/certificates/{certificateId}", controllers.PublicCertificateGet(certificateService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Post("/groups/{groupId}/documents", controllers.DocumentUpload(documentService, maxUpload, logg))

			r.Route("/documents/{documentId}", func(r chi.Router) {
				r.Get("/", controllers.DocumentGet(documentService, logg))
				r.Delete("/", controllers.DocumentDelete(documentService, logg))
				r.Get("/download", controllers.DocumentDownload(documentService, logg))
				r.Get("/versions", controllers.DocumentVersionsList(documentService, logg))
				r.Post("/versions", controllers.DocumentVersionUpload(documentService, maxUpload, logg))
				r.Post("/send", controllers.DocumentSend(signingService, logg))
				r.Get("/status", controllers.DocumentStatus(signingService, logg))
				r.Post("/certificate", controllers.CertificateGenerate(certificateService, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationService, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.PlatformRoleAdmin))
				r.Post("/certificates/{certificateId}/revoke", controllers.AdminCertificateRevoke(certificateService, logg))
			})
		})
	})

	return r
}
