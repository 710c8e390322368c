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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Cache        CacheConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PayPal       PayPalConfig
	Sendgrid     SendgridConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Import       ImportConfig
	Password     PasswordConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.ensureURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// toolingApp is the slice of AppConfig offline tools read; they never bind a
// port.
type toolingApp struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

// LoadTooling reads the sections used by cmd/migrate and cmd/import: the
// database, feature flags, import paths and password hashing. Service
// credentials are not required.
func LoadTooling() (*Config, error) {
	var cfg Config
	if err := cfg.loadSections(&cfg.DB, &cfg.FeatureFlags, &cfg.Import, &cfg.Password); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadMaintenance reads what cmd/maintenance needs: the database, Redis for
// its run lock and the retention windows.
func LoadMaintenance() (*Config, error) {
	var cfg Config
	if err := cfg.loadSections(&cfg.DB, &cfg.FeatureFlags, &cfg.Redis, &cfg.Maintenance); err != nil {
		return nil, err
	}
	if err := cfg.Redis.ensureURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) loadSections(sections ...any) error {
	var app toolingApp
	for _, section := range append([]any{&app}, sections...) {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return err
	}
	cfg.App.Env = app.Env
	cfg.App.LogLevel = app.LogLevel
	cfg.App.LogWarnStack = app.LogWarnStack
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	PublicHost   string `envconfig:"STOREFRONT_PUBLIC_HOST" default:"http://localhost:3000"`
	// CORSOrigins is a comma separated list.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CacheConfig controls the Redis backed response and permission caches.
type CacheConfig struct {
	CatalogTTL     time.Duration `envconfig:"STOREFRONT_CACHE_CATALOG_TTL" default:"5m"`
	PermissionsTTL time.Duration `envconfig:"STOREFRONT_CACHE_PERMISSIONS_TTL" default:"1m"`
	FinalizeLock   time.Duration `envconfig:"STOREFRONT_FINALIZE_LOCK_TTL" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"STOREFRONT_GCS_BUCKET_NAME" required:"true"`
	MediaPrefix       string        `envconfig:"STOREFRONT_GCS_MEDIA_PREFIX" default:"media"`
	FilesPrefix       string        `envconfig:"STOREFRONT_GCS_FILES_PREFIX" default:"products"`
	PublicBaseURL     string        `envconfig:"STOREFRONT_GCS_PUBLIC_BASE_URL"`
	DownloadURLExpiry time.Duration `envconfig:"STOREFRONT_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PayPalConfig struct {
	Env          string `envconfig:"STOREFRONT_PAYPAL_ENV" default:"sandbox"`
	BaseURL      string `envconfig:"STOREFRONT_PAYPAL_BASE_URL"`
	ClientID     string `envconfig:"STOREFRONT_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"STOREFRONT_PAYPAL_CLIENT_SECRET"`
	Currency     string `envconfig:"STOREFRONT_PAYPAL_CURRENCY" default:"USD"`
}

// Endpoint returns the REST base URL, honouring an explicit override.
func (p PayPalConfig) Endpoint() string {
	if base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/"); base != "" {
		return base
	}
	if strings.EqualFold(strings.TrimSpace(p.Env), "live") {
		return PayPalLiveURL
	}
	return PayPalSandboxURL
}

type SendgridConfig struct {
	APIKey         string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom    string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL" default:"noreply@example.com"`
	SupportAddress string `envconfig:"STOREFRONT_SUPPORT_EMAIL"`
	OrderSubject   string `envconfig:"STOREFRONT_ORDER_CONFIRMATION_SUBJECT" default:"Order Confirmation"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr serves /metrics from the publisher when set.
	MetricsAddr string `envconfig:"STOREFRONT_OUTBOX_METRICS_ADDR"`
}

// ImportConfig points the legacy catalog importer at its JSON exports.
type ImportConfig struct {
	ProductsPath  string `envconfig:"STOREFRONT_IMPORT_PRODUCTS_PATH" default:"data/products.json"`
	CustomersPath string `envconfig:"STOREFRONT_IMPORT_CUSTOMERS_PATH" default:"data/customers.json"`
}

// PasswordConfig tunes the Argon2id hashes written for imported customers.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"1"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

// MaintenanceConfig drives the housekeeping worker.
type MaintenanceConfig struct {
	Interval           time.Duration `envconfig:"STOREFRONT_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL            time.Duration `envconfig:"STOREFRONT_MAINTENANCE_LOCK_TTL" default:"50m"`
	OutboxRetention    time.Duration `envconfig:"STOREFRONT_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
	PendingOrderMaxAge time.Duration `envconfig:"STOREFRONT_MAINTENANCE_PENDING_ORDER_MAX_AGE" default:"168h"`
	// MetricsAddr serves /metrics from the worker when set.
	MetricsAddr string `envconfig:"STOREFRONT_MAINTENANCE_METRICS_ADDR"`
}

// ensureURL rejects a Redis URL that is set but blank; envconfig's required
// tag only catches an unset variable.
func (r *RedisConfig) ensureURL() error {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return fmt.Errorf("%s is required", EnvRedisURL)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
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
