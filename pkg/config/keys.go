package config

const (
	EnvPrefix = "CROPMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CROPMARKET_APP_ENV"
	EnvPort     = "CROPMARKET_APP_PORT"
	EnvLogLevel = "CROPMARKET_LOG_LEVEL"

	EnvDBDSN  = "CROPMARKET_DB_DSN"
	EnvDBHost = "CROPMARKET_DB_HOST"
	EnvDBPort = "CROPMARKET_DB_PORT"
	EnvDBUser = "CROPMARKET_DB_USER"
	EnvDBPass = "CROPMARKET_DB_PASSWORD"
	EnvDBName = "CROPMARKET_DB_NAME"

	EnvDBTxRetries = "CROPMARKET_DB_TX_RETRIES"

	EnvRedisURL        = "CROPMARKET_REDIS_URL"
	EnvRateLimitWindow = "CROPMARKET_RATE_LIMIT_WINDOW"

	EnvJWTSecret  = "CROPMARKET_JWT_SECRET"
	EnvJWTIssuer  = "CROPMARKET_JWT_ISSUER"
	EnvJWTExpMins = "CROPMARKET_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID       = "CROPMARKET_GCP_PROJECT_ID"
	EnvPubSubNotification = "CROPMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvStripeAPIKey  = "CROPMARKET_STRIPE_API_KEY"
	EnvStripeSecret  = "CROPMARKET_STRIPE_SECRET"
	EnvStripeTimeout = "CROPMARKET_STRIPE_TIMEOUT_SECONDS"
	EnvStripeEnv     = "CROPMARKET_STRIPE_ENV"

	EnvOutboxBatchSize   = "CROPMARKET_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "CROPMARKET_OUTBOX_MAX_ATTEMPTS"
	EnvLowStockThreshold = "CROPMARKET_INVENTORY_LOW_STOCK_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
