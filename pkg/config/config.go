package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Catalog      CatalogConfig
	Orders       OrdersConfig
	GoogleMaps   GoogleMapsConfig
	Geocoding    GeocodingConfig
	Delivery     DeliveryConfig
	Session      SessionConfig
	Checkout     CheckoutConfig
	Nudge        NudgeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
	HTTP         HTTPConfig
	RateLimit    RateLimitConfig
	Internal     InternalConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Delivery.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ATMOS_APP_ENV" required:"true"`
	Port         string `envconfig:"ATMOS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ATMOS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ATMOS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ATMOS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ATMOS_DB_DSN"`
	Driver string `envconfig:"ATMOS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ATMOS_DB_HOST"`
	LegacyPort     int    `envconfig:"ATMOS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ATMOS_DB_USER"`
	LegacyPassword string `envconfig:"ATMOS_DB_PASSWORD"`
	LegacyName     string `envconfig:"ATMOS_DB_NAME"`
	LegacySSLMode  string `envconfig:"ATMOS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ATMOS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ATMOS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ATMOS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ATMOS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ATMOS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ATMOS_REDIS_ADDR"`
	Password     string        `envconfig:"ATMOS_REDIS_PASSWORD"`
	DB           int           `envconfig:"ATMOS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ATMOS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ATMOS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ATMOS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ATMOS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ATMOS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"ATMOS_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"ATMOS_AUTO_MIGRATE" default:"false"`
	RequireEmail bool `envconfig:"ATMOS_FEATURE_REQUIRE_EMAIL" default:"false"`
	OrderEvents  bool `envconfig:"ATMOS_FEATURE_ORDER_EVENTS" default:"false"`
}

type CatalogConfig struct {
	BaseURL string        `envconfig:"ATMOS_CATALOG_BASE_URL" default:"https://atmosfoodin.onrender.com/api"`
	Timeout time.Duration `envconfig:"ATMOS_CATALOG_TIMEOUT" default:"10s"`
}

type OrdersConfig struct {
	BaseURL string        `envconfig:"ATMOS_ORDERS_BASE_URL" default:"https://atmosfoodin.onrender.com/api"`
	Timeout time.Duration `envconfig:"ATMOS_ORDERS_TIMEOUT" default:"15s"`
}

type GoogleMapsConfig struct {
	APIKey  string `envconfig:"ATMOS_GOOGLE_MAPS_API_KEY"`
	BaseURL string `envconfig:"ATMOS_GOOGLE_MAPS_BASE_URL"`
}

type GeocodingConfig struct {
	NominatimURL string        `envconfig:"ATMOS_GEOCODING_NOMINATIM_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent    string        `envconfig:"ATMOS_GEOCODING_USER_AGENT" default:"AtmosFood App"`
	CountryCode  string        `envconfig:"ATMOS_GEOCODING_COUNTRY_CODE" default:"ng"`
	CitySuffix   string        `envconfig:"ATMOS_GEOCODING_CITY_SUFFIX" default:"Ilorin, Nigeria"`
	Timeout      time.Duration `envconfig:"ATMOS_GEOCODING_TIMEOUT" default:"10s"`
	RateWindow   time.Duration `envconfig:"ATMOS_GEOCODING_RATE_WINDOW" default:"1m"`
	RateLimit    int           `envconfig:"ATMOS_GEOCODING_RATE_LIMIT" default:"10"`
}

type DeliveryConfig struct {
	Policy           string  `envconfig:"ATMOS_DELIVERY_POLICY" default:"area"`
	BaseFee          int64   `envconfig:"ATMOS_DELIVERY_BASE_FEE" default:"400"`
	DistanceFloorKm  float64 `envconfig:"ATMOS_DELIVERY_DISTANCE_FLOOR_KM" default:"2"`
	DistanceFloorFee int64   `envconfig:"ATMOS_DELIVERY_DISTANCE_FLOOR_FEE" default:"500"`
	PerKmRate        int64   `envconfig:"ATMOS_DELIVERY_PER_KM_RATE" default:"200"`
	KitchenLat       float64 `envconfig:"ATMOS_DELIVERY_KITCHEN_LAT" default:"8.4966"`
	KitchenLng       float64 `envconfig:"ATMOS_DELIVERY_KITCHEN_LNG" default:"4.5421"`
	AreaTablePath    string  `envconfig:"ATMOS_DELIVERY_AREA_TABLE_PATH"`
}

func (d DeliveryConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(d.Policy)) {
	case DeliveryPolicyArea, DeliveryPolicyDistance:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDeliveryPolicy, DeliveryPolicyArea, DeliveryPolicyDistance)
	}
	if d.BaseFee < 0 || d.DistanceFloorFee < 0 || d.PerKmRate < 0 {
		return fmt.Errorf("delivery fees must be non-negative")
	}
	if d.DistanceFloorKm < 0 {
		return fmt.Errorf("%s must be non-negative", EnvDeliveryFloorKm)
	}
	return nil
}

type SessionConfig struct {
	CartTTL        time.Duration `envconfig:"ATMOS_SESSION_CART_TTL" default:"72h"`
	FlowTTL        time.Duration `envconfig:"ATMOS_SESSION_FLOW_TTL" default:"1h"`
	StagingTTL     time.Duration `envconfig:"ATMOS_SESSION_STAGING_TTL" default:"1h"`
	FulfillmentTTL time.Duration `envconfig:"ATMOS_SESSION_FULFILLMENT_TTL" default:"24h"`
}

type CheckoutConfig struct {
	PendingTTL        time.Duration `envconfig:"ATMOS_CHECKOUT_PENDING_TTL" default:"10m"`
	ProcessingLockTTL time.Duration `envconfig:"ATMOS_CHECKOUT_PROCESSING_LOCK_TTL" default:"30s"`
}

type NudgeConfig struct {
	DrinksDelay   time.Duration `envconfig:"ATMOS_NUDGE_DRINKS_DELAY" default:"800ms"`
	ToastDuration time.Duration `envconfig:"ATMOS_NUDGE_TOAST_DURATION" default:"3500ms"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ATMOS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ATMOS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ATMOS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"ATMOS_PUBSUB_ORDERS_TOPIC" default:"atmos-order-events"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ATMOS_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"ATMOS_CRON_LOCK_TTL" default:"4m"`
}

type HTTPConfig struct {
	AllowedOrigins  []string      `envconfig:"ATMOS_HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	ReadTimeout     time.Duration `envconfig:"ATMOS_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"ATMOS_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"ATMOS_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// RateLimitConfig throttles checkout submissions and order lookups by email.
// A zero limit disables that counter.
type RateLimitConfig struct {
	CheckoutWindow       time.Duration `envconfig:"ATMOS_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit      int           `envconfig:"ATMOS_RATE_LIMIT_CHECKOUT_IP" default:"20"`
	CheckoutSessionLimit int           `envconfig:"ATMOS_RATE_LIMIT_CHECKOUT_SESSION" default:"5"`
	LookupWindow         time.Duration `envconfig:"ATMOS_RATE_LIMIT_LOOKUP_WINDOW" default:"1m"`
	LookupIPLimit        int           `envconfig:"ATMOS_RATE_LIMIT_LOOKUP_IP" default:"60"`
	LookupSessionLimit   int           `envconfig:"ATMOS_RATE_LIMIT_LOOKUP_SESSION" default:"30"`
}

// InternalConfig guards the kitchen-side routes. They are not mounted when
// the token is empty.
type InternalConfig struct {
	Token string `envconfig:"ATMOS_INTERNAL_API_TOKEN"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
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
