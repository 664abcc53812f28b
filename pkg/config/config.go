package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	Inventory    InventoryConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validate checks the relationships envconfig tags cannot express. Every
// problem is reported at once.
func (c *Config) validate() error {
	var err error
	if env := c.Stripe.Environment(); env != "test" && env != "live" {
		err = multierr.Append(err, fmt.Errorf("%s must be test or live, got %q", EnvStripeEnv, c.Stripe.Env))
	}
	if c.DB.TxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvDBTxRetries))
	}
	if c.Redis.RateLimitWindow <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvRateLimitWindow))
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s and %s must be positive", EnvOutboxBatchSize, EnvOutboxMaxAttempts))
	}
	if c.Inventory.DefaultLowStockThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvLowStockThreshold))
	}
	return err
}

type AppConfig struct {
	Env          string   `envconfig:"CROPMARKET_APP_ENV" required:"true"`
	Port         string   `envconfig:"CROPMARKET_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CROPMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CROPMARKET_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CROPMARKET_CORS_ORIGINS"`
	// MetricsAddr exposes /metrics from the background binaries; empty disables it.
	MetricsAddr  string   `envconfig:"CROPMARKET_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CROPMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CROPMARKET_DB_DSN"`
	Driver string `envconfig:"CROPMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CROPMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"CROPMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CROPMARKET_DB_USER"`
	LegacyPassword string `envconfig:"CROPMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"CROPMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"CROPMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CROPMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CROPMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CROPMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CROPMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Queries slower than this are logged at warn level. Zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"CROPMARKET_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
	TxRetries          int           `envconfig:"CROPMARKET_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL            string        `envconfig:"CROPMARKET_REDIS_URL" required:"true"`
	Address        string        `envconfig:"CROPMARKET_REDIS_ADDR"`
	Password       string        `envconfig:"CROPMARKET_REDIS_PASSWORD"`
	DB             int           `envconfig:"CROPMARKET_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"CROPMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"CROPMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"CROPMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"CROPMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"CROPMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"CROPMARKET_REDIS_IDEMPOTENCY_TTL" default:"24h"`

	RateLimitWindow   time.Duration `envconfig:"CROPMARKET_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerActor int           `envconfig:"CROPMARKET_RATE_LIMIT_PER_ACTOR" default:"120"`
	RateLimitPerIP    int           `envconfig:"CROPMARKET_RATE_LIMIT_PER_IP" default:"300"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CROPMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CROPMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CROPMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CROPMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CROPMARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CROPMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID         string `envconfig:"CROPMARKET_GCP_PROJECT_ID" required:"true"`
	PubSubEmulatorURL string `envconfig:"CROPMARKET_PUBSUB_EMULATOR_HOST"`
}

type PubSubConfig struct {
	EventsTopic              string `envconfig:"CROPMARKET_PUBSUB_EVENTS_TOPIC" default:"cm-lifecycle-events"`
	NotificationSubscription string `envconfig:"CROPMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CROPMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CROPMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CROPMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"CROPMARKET_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"CROPMARKET_STRIPE_API_KEY"`
	Secret         string `envconfig:"CROPMARKET_STRIPE_SECRET"`
	Env            string `envconfig:"CROPMARKET_STRIPE_ENV" default:"test"`
	Currency       string `envconfig:"CROPMARKET_STRIPE_CURRENCY" default:"usd"`
	TimeoutSeconds int    `envconfig:"CROPMARKET_STRIPE_TIMEOUT_SECONDS" default:"10"`

	WebhookRPS   float64 `envconfig:"CROPMARKET_STRIPE_WEBHOOK_RPS" default:"25"`
	WebhookBurst int     `envconfig:"CROPMARKET_STRIPE_WEBHOOK_BURST" default:"50"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Timeout bounds every synchronous gateway call.
func (s StripeConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type InventoryConfig struct {
	DefaultLowStockThreshold int `envconfig:"CROPMARKET_INVENTORY_LOW_STOCK_THRESHOLD" default:"10"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"CROPMARKET_CRON_INTERVAL" default:"5m"`
	JobTimeout                time.Duration `envconfig:"CROPMARKET_CRON_JOB_TIMEOUT" default:"2m"`
	RetentionEvery            time.Duration `envconfig:"CROPMARKET_CRON_RETENTION_EVERY" default:"24h"`
	PendingPaymentMaxAge      time.Duration `envconfig:"CROPMARKET_CRON_PENDING_PAYMENT_MAX_AGE" default:"30m"`
	PaymentReconcileBatchSize int           `envconfig:"CROPMARKET_CRON_PAYMENT_RECONCILE_BATCH" default:"100"`
	OutboxRetentionDays       int           `envconfig:"CROPMARKET_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"CROPMARKET_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
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
