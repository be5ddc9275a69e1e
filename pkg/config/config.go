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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Rewards      RewardsConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VERDANA_APP_ENV" required:"true"`
	Port         string `envconfig:"VERDANA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VERDANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VERDANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VERDANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VERDANA_DB_DSN"`
	Driver string `envconfig:"VERDANA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VERDANA_DB_HOST"`
	LegacyPort     int    `envconfig:"VERDANA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VERDANA_DB_USER"`
	LegacyPassword string `envconfig:"VERDANA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VERDANA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VERDANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VERDANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VERDANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VERDANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VERDANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VERDANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VERDANA_REDIS_ADDR"`
	Password     string        `envconfig:"VERDANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VERDANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VERDANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VERDANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VERDANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VERDANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VERDANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VERDANA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VERDANA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VERDANA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VERDANA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VERDANA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VERDANA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VERDANA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VERDANA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VERDANA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"VERDANA_PUBSUB_SETTLEMENT_TOPIC" default:"vd-settlement-events"`
	SettlementSubscription string `envconfig:"VERDANA_PUBSUB_SETTLEMENT_SUBSCRIPTION" required:"true"`
	GroupTopic             string `envconfig:"VERDANA_PUBSUB_GROUP_TOPIC" default:"vd-group-events"`
	GroupSubscription      string `envconfig:"VERDANA_PUBSUB_GROUP_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VERDANA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VERDANA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VERDANA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SettlementConfig tunes the order settlement coordinator.
type SettlementConfig struct {
	TaxRateBps            int    `envconfig:"VERDANA_SETTLEMENT_TAX_RATE_BPS" default:"800"`
	FreeShippingCents     int64  `envconfig:"VERDANA_SETTLEMENT_FREE_SHIPPING_CENTS" default:"5000"`
	FlatShippingCents     int64  `envconfig:"VERDANA_SETTLEMENT_FLAT_SHIPPING_CENTS" default:"599"`
	OrderNumberPrefix     string `envconfig:"VERDANA_SETTLEMENT_ORDER_NUMBER_PREFIX" default:"VRD"`
	OrderNumberMaxRetries int    `envconfig:"VERDANA_SETTLEMENT_ORDER_NUMBER_RETRIES" default:"5"`
}

// RewardsConfig tunes gamification payouts.
type RewardsConfig struct {
	ContributionShareBps int `envconfig:"VERDANA_REWARDS_CONTRIBUTION_SHARE_BPS" default:"1000"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VERDANA_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"VERDANA_CRON_LOCK_TTL" default:"25h"`
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
