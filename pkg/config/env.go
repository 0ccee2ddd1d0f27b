package config

// EnvPrefix is the envconfig prefix; every tag carries the full name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
	AppEnvTest = "test"
)

const (
	EnvAppEnv  = "STOREFRONT_APP_ENV"
	EnvAppPort = "STOREFRONT_APP_PORT"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBDriver   = "STOREFRONT_DB_DRIVER"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBPassword = "STOREFRONT_DB_PASSWORD"
	EnvDBName     = "STOREFRONT_DB_NAME"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvSessionSecret = "STOREFRONT_SESSION_SECRET"
	EnvCartBackend   = "STOREFRONT_CART_BACKEND"

	EnvOutboxBatchSize    = "STOREFRONT_OUTBOX_BATCH_SIZE"
	EnvOutboxPollInterval = "STOREFRONT_OUTBOX_POLL_INTERVAL"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const defaultSQLiteDSN = "file:storefront.db?_foreign_keys=on"
