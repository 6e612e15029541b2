package config

const EnvPrefix = "ATMOS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:atmos.db?cache=shared&_fk=1"
)

const (
	DeliveryPolicyArea     = "area"
	DeliveryPolicyDistance = "distance"
)

const (
	EnvAppEnv          = "ATMOS_APP_ENV"
	EnvPort            = "ATMOS_APP_PORT"
	EnvDBDSN           = "ATMOS_DB_DSN"
	EnvDBHost          = "ATMOS_DB_HOST"
	EnvDBUser          = "ATMOS_DB_USER"
	EnvDBName          = "ATMOS_DB_NAME"
	EnvRedisURL        = "ATMOS_REDIS_URL"
	EnvUseSQLite       = "ATMOS_USE_SQLITE"
	EnvDeliveryPolicy  = "ATMOS_DELIVERY_POLICY"
	EnvDeliveryFloorKm = "ATMOS_DELIVERY_DISTANCE_FLOOR_KM"
	EnvPendingTTL      = "ATMOS_CHECKOUT_PENDING_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
