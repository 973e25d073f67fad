package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "VOWMARKET_APP_ENV"
	EnvPort     = "VOWMARKET_APP_PORT"
	EnvLogLevel = "VOWMARKET_LOG_LEVEL"

	EnvDBDriver = "VOWMARKET_DB_DRIVER"
	EnvDBDSN    = "VOWMARKET_DB_DSN"
	EnvDBHost   = "VOWMARKET_DB_HOST"
	EnvDBPort   = "VOWMARKET_DB_PORT"
	EnvDBUser   = "VOWMARKET_DB_USER"
	EnvDBPass   = "VOWMARKET_DB_PASSWORD"
	EnvDBName   = "VOWMARKET_DB_NAME"

	EnvRedisURL = "VOWMARKET_REDIS_URL"

	EnvJWTSecret  = "VOWMARKET_JWT_SECRET"
	EnvJWTIssuer  = "VOWMARKET_JWT_ISSUER"
	EnvJWTExpMins = "VOWMARKET_JWT_EXPIRATION_MINUTES"

	EnvSettlementHoldWindow = "VOWMARKET_SETTLEMENT_HOLD_WINDOW"
	EnvSettlementCurrency   = "VOWMARKET_SETTLEMENT_CURRENCY"

	EnvStripeAPIKey = "VOWMARKET_STRIPE_API_KEY"
	EnvStripeSecret = "VOWMARKET_STRIPE_SECRET"
	EnvStripeEnv    = "VOWMARKET_STRIPE_ENV"

	EnvOutboxRetention = "VOWMARKET_OUTBOX_RETENTION"
	EnvCronInterval    = "VOWMARKET_CRON_INTERVAL"
	EnvCronLockTTL     = "VOWMARKET_CRON_LOCK_TTL"

	EnvGCPProjectID       = "VOWMARKET_GCP_PROJECT_ID"
	EnvPubSubSettlementTo = "VOWMARKET_PUBSUB_SETTLEMENT_TOPIC"
)
