// Package config loads process configuration from VOWMARKET_* environment
// variables. Load fills defaults, derives the database DSN and rejects values
// that would only fail later at a provider call.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Settlement   SettlementConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Settlement.Currency = strings.ToLower(strings.TrimSpace(cfg.Settlement.Currency))
	cfg.Stripe.Env = cfg.Stripe.Environment()

	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := check(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checker reports failures under the env var name of the offending field.
var checker = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}()

func check(cfg *Config) error {
	if cfg.App.IsProd() && strings.EqualFold(cfg.DB.Driver, "sqlite") {
		return fmt.Errorf("invalid config: %s=sqlite is not allowed in %s", EnvDBDriver, AppEnvProd)
	}
	err := checker.Struct(cfg)
	var fieldErrs validator.ValidationErrors
	if err == nil || !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Field(), rule))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

type AppConfig struct {
	Env          string `envconfig:"VOWMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"VOWMARKET_APP_PORT" required:"true" validate:"numeric"`
	LogLevel     string `envconfig:"VOWMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VOWMARKET_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"VOWMARKET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000" validate:"dive,url"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"VOWMARKET_SERVICE_KIND" default:"api"`
}

// DBConfig takes either a full DSN or discrete Postgres settings.
type DBConfig struct {
	DSN    string `envconfig:"VOWMARKET_DB_DSN"`
	Driver string `envconfig:"VOWMARKET_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	Host     string `envconfig:"VOWMARKET_DB_HOST"`
	Port     int    `envconfig:"VOWMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"VOWMARKET_DB_USER"`
	Password string `envconfig:"VOWMARKET_DB_PASSWORD"`
	Name     string `envconfig:"VOWMARKET_DB_NAME"`
	SSLMode  string `envconfig:"VOWMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns       int           `envconfig:"VOWMARKET_DB_MAX_OPEN_CONNS" default:"20" validate:"gte=1"`
	MaxIdleConns       int           `envconfig:"VOWMARKET_DB_MAX_IDLE_CONNS" default:"10" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime    time.Duration `envconfig:"VOWMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime    time.Duration `envconfig:"VOWMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQueryThreshold time.Duration `envconfig:"VOWMARKET_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"VOWMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VOWMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"VOWMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"VOWMARKET_REDIS_DB" default:"0" validate:"gte=0,lte=15"`
	PoolSize     int           `envconfig:"VOWMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VOWMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VOWMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VOWMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VOWMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VOWMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VOWMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VOWMARKET_JWT_EXPIRATION_MINUTES" required:"true" validate:"gt=0"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VOWMARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"VOWMARKET_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h" validate:"gt=0"`
}

type SettlementConfig struct {
	HoldWindow time.Duration `envconfig:"VOWMARKET_SETTLEMENT_HOLD_WINDOW" default:"168h" validate:"gt=0"`
	Currency   string        `envconfig:"VOWMARKET_SETTLEMENT_CURRENCY" default:"usd" validate:"len=3,alpha"`
}

// NormalizedCurrency is the lower-case ISO 4217 code sent to the provider.
func (s SettlementConfig) NormalizedCurrency() string {
	return strings.ToLower(strings.TrimSpace(s.Currency))
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VOWMARKET_CRON_INTERVAL" default:"24h" validate:"gt=0"`
	LockTTL  time.Duration `envconfig:"VOWMARKET_CRON_LOCK_TTL" default:"25h" validate:"gtfield=Interval"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VOWMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VOWMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VOWMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"VOWMARKET_PUBSUB_SETTLEMENT_TOPIC" default:"vm-settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VOWMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50" validate:"gt=0"`
	PollIntervalMS int           `envconfig:"VOWMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500" validate:"gt=0"`
	MaxAttempts    int           `envconfig:"VOWMARKET_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"gt=0"`
	Retention      time.Duration `envconfig:"VOWMARKET_OUTBOX_RETENTION" default:"720h" validate:"gt=0"`
}

type StripeConfig struct {
	APIKey            string        `envconfig:"VOWMARKET_STRIPE_API_KEY"`
	Secret            string        `envconfig:"VOWMARKET_STRIPE_SECRET"`
	Env               string        `envconfig:"VOWMARKET_STRIPE_ENV" default:"test" validate:"oneof=test live"`
	SuccessURL        string        `envconfig:"VOWMARKET_STRIPE_SUCCESS_URL" default:"http://localhost:3000/checkout/success" validate:"url"`
	CancelURL         string        `envconfig:"VOWMARKET_STRIPE_CANCEL_URL" default:"http://localhost:3000/checkout/cancel" validate:"url"`
	ConnectReturnURL  string        `envconfig:"VOWMARKET_STRIPE_CONNECT_RETURN_URL" default:"http://localhost:3000/seller/payouts" validate:"url"`
	ConnectRefreshURL string        `envconfig:"VOWMARKET_STRIPE_CONNECT_REFRESH_URL" default:"http://localhost:3000/seller/payouts/refresh" validate:"url"`
	Timeout           time.Duration `envconfig:"VOWMARKET_STRIPE_TIMEOUT" default:"15s" validate:"gt=0"`
	MaxNetworkRetries int64         `envconfig:"VOWMARKET_STRIPE_MAX_NETWORK_RETRIES" default:"2" validate:"gte=0,lte=5"`
}

// Environment returns the lower-cased Stripe mode, defaulting to test.
func (s StripeConfig) Environment() string {
	if env := strings.ToLower(strings.TrimSpace(s.Env)); env != "" {
		return env
	}
	return "test"
}
