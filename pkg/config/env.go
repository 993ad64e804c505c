package config

const (
	EnvPrefix = "COOWN"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StorageDriverGCS   = "gcs"
	StorageDriverMinio = "minio"

	ScannerModeOff       = "off"
	ScannerModeSignature = "signature"

	MinTokenSecretLen = 32
)

const (
	EnvAppEnv   = "COOWN_APP_ENV"
	EnvPort     = "COOWN_APP_PORT"
	EnvLogLevel = "COOWN_LOG_LEVEL"

	EnvDBDSN  = "COOWN_DB_DSN"
	EnvDBHost = "COOWN_DB_HOST"
	EnvDBUser = "COOWN_DB_USER"
	EnvDBName = "COOWN_DB_NAME"

	EnvRedisURL = "COOWN_REDIS_URL"

	EnvJWTSecret  = "COOWN_JWT_SECRET"
	EnvJWTIssuer  = "COOWN_JWT_ISSUER"
	EnvJWTExpMins = "COOWN_JWT_EXPIRATION_MINUTES"

	EnvSigningTokenSecret     = "COOWN_SIGNING_TOKEN_SECRET"
	EnvSigningDefaultTokenTTL = "COOWN_SIGNING_DEFAULT_TOKEN_TTL"
	EnvSigningCertificateTTL  = "COOWN_SIGNING_CERTIFICATE_TTL"

	EnvStorageDriver = "COOWN_STORAGE_DRIVER"
	EnvGCSBucket     = "COOWN_GCS_BUCKET_NAME"
	EnvMinioEndpoint = "COOWN_MINIO_ENDPOINT"
	EnvMinioBucket   = "COOWN_MINIO_BUCKET"

	EnvUseSQLite = "COOWN_USE_SQLITE"

	EnvGCPProjectID = "COOWN_GCP_PROJECT_ID"

	EnvPubSubNotificationSubscription = "COOWN_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
