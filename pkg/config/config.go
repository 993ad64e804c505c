package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Signing       SigningConfig
	Storage       StorageConfig
	Scanner       ScannerConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Notifications NotificationsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Signing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COOWN_APP_ENV" required:"true"`
	Port         string `envconfig:"COOWN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COOWN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COOWN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COOWN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COOWN_DB_DSN"`
	Driver string `envconfig:"COOWN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COOWN_DB_HOST"`
	LegacyPort     int    `envconfig:"COOWN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COOWN_DB_USER"`
	LegacyPassword string `envconfig:"COOWN_DB_PASSWORD"`
	LegacyName     string `envconfig:"COOWN_DB_NAME"`
	LegacySSLMode  string `envconfig:"COOWN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COOWN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COOWN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COOWN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COOWN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"COOWN_REDIS_URL"`
	Address      string        `envconfig:"COOWN_REDIS_ADDR"`
	Password     string        `envconfig:"COOWN_REDIS_PASSWORD"`
	DB           int           `envconfig:"COOWN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COOWN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COOWN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COOWN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COOWN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COOWN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"COOWN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COOWN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COOWN_JWT_EXPIRATION_MINUTES" required:"true"`
}

// SigningConfig carries the secrets and horizons of the signing workflow. It is
// handed to constructors explicitly; nothing in the workflow reads it globally.
type SigningConfig struct {
	TokenSecret         string        `envconfig:"COOWN_SIGNING_TOKEN_SECRET" required:"true"`
	Issuer              string        `envconfig:"COOWN_SIGNING_ISSUER" default:"coown-esign"`
	DefaultTokenTTL     time.Duration `envconfig:"COOWN_SIGNING_DEFAULT_TOKEN_TTL" default:"168h"`
	CertificateTTL      time.Duration `envconfig:"COOWN_SIGNING_CERTIFICATE_TTL" default:"87600h"`
	CollaboratorTimeout time.Duration `envconfig:"COOWN_SIGNING_COLLABORATOR_TIMEOUT" default:"10s"`
	DocumentLockTTL     time.Duration `envconfig:"COOWN_SIGNING_DOCUMENT_LOCK_TTL" default:"30s"`
	MaxUploadMB         int           `envconfig:"COOWN_SIGNING_MAX_UPLOAD_MB" default:"25"`
}

// MaxUploadBytes converts the configured megabyte limit into bytes.
func (s SigningConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) * 1024 * 1024
}

func (s SigningConfig) validate() error {
	if len(s.TokenSecret) < MinTokenSecretLen {
		return fmt.Errorf("%s must be at least %d bytes", EnvSigningTokenSecret, MinTokenSecretLen)
	}
	if s.DefaultTokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvSigningDefaultTokenTTL)
	}
	if s.CertificateTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvSigningCertificateTTL)
	}
	return nil
}

type StorageConfig struct {
	Driver string `envconfig:"COOWN_STORAGE_DRIVER" default:"gcs"`

	GCSBucket string `envconfig:"COOWN_GCS_BUCKET_NAME"`

	MinioEndpoint  string `envconfig:"COOWN_MINIO_ENDPOINT"`
	MinioAccessKey string `envconfig:"COOWN_MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"COOWN_MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"COOWN_MINIO_BUCKET"`
	MinioRegion    string `envconfig:"COOWN_MINIO_REGION"`
	MinioUseSSL    bool   `envconfig:"COOWN_MINIO_USE_SSL" default:"true"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("%s is required for the gcs storage driver", EnvGCSBucket)
		}
	case StorageDriverMinio:
		if s.MinioEndpoint == "" || s.MinioBucket == "" {
			return fmt.Errorf("%s and %s are required for the minio storage driver", EnvMinioEndpoint, EnvMinioBucket)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
	return nil
}

type ScannerConfig struct {
	Mode     string `envconfig:"COOWN_AV_SCAN" default:"signature"`
	MaxBytes int64  `envconfig:"COOWN_AV_SCAN_MAX_BYTES" default:"0"`
}

type RateLimitConfig struct {
	PublicWindow  time.Duration `envconfig:"COOWN_RATE_LIMIT_PUBLIC_WINDOW" default:"1m"`
	PublicIP      int           `envconfig:"COOWN_RATE_LIMIT_PUBLIC_IP_LIMIT" default:"30"`
	PublicSubject int           `envconfig:"COOWN_RATE_LIMIT_PUBLIC_SUBJECT_LIMIT" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"COOWN_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COOWN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COOWN_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COOWN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COOWN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COOWN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"COOWN_PUBSUB_NOTIFICATION_TOPIC" default:"coown-signing-notifications"`
	DomainTopic              string `envconfig:"COOWN_PUBSUB_DOMAIN_TOPIC" default:"coown-signing-events"`
	NotificationSubscription string `envconfig:"COOWN_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type NotificationsConfig struct {
	ConsumerName   string        `envconfig:"COOWN_NOTIFICATIONS_CONSUMER" default:"signer-inbox"`
	IdempotencyTTL time.Duration `envconfig:"COOWN_NOTIFICATIONS_IDEMPOTENCY_TTL" default:"72h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COOWN_CRON_INTERVAL" default:"15m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COOWN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COOWN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COOWN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = "file:coown.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
