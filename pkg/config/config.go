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
	HTTP         HTTPConfig
	Ledger       LedgerConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
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
	if err := cfg.Eventing.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLUBLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"CLUBLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLUBLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CLUBLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CLUBLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLUBLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLUBLEDGER_DB_DSN"`
	Driver string `envconfig:"CLUBLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLUBLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"CLUBLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLUBLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"CLUBLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLUBLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLUBLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLUBLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLUBLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLUBLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLUBLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLUBLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLUBLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"CLUBLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLUBLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLUBLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLUBLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLUBLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLUBLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLUBLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the external auth service.
type JWTConfig struct {
	Secret string `envconfig:"CLUBLEDGER_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CLUBLEDGER_JWT_ISSUER" required:"true"`
}

// HTTPConfig covers the API edge: CORS and the per-user write throttle.
type HTTPConfig struct {
	CORSAllowedOrigins []string      `envconfig:"CLUBLEDGER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	WriteRateWindow    time.Duration `envconfig:"CLUBLEDGER_WRITE_RATE_WINDOW" default:"1m"`
	WriteRateLimit     int           `envconfig:"CLUBLEDGER_WRITE_RATE_LIMIT" default:"60"`
	ShutdownTimeout    time.Duration `envconfig:"CLUBLEDGER_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// LedgerConfig tunes the optimistic-concurrency loop and ledger policies.
type LedgerConfig struct {
	MaxAttempts    int           `envconfig:"CLUBLEDGER_LEDGER_MAX_ATTEMPTS" default:"5"`
	RetryBaseDelay time.Duration `envconfig:"CLUBLEDGER_LEDGER_RETRY_BASE_DELAY" default:"20ms"`
	AllowOverdraft bool          `envconfig:"CLUBLEDGER_LEDGER_ALLOW_OVERDRAFT" default:"true"`
	Currency       string        `envconfig:"CLUBLEDGER_LEDGER_CURRENCY" default:"KRW"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CLUBLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CLUBLEDGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	Transport string `envconfig:"CLUBLEDGER_EVENTING_TRANSPORT" default:"pubsub"`
	Topic     string `envconfig:"CLUBLEDGER_EVENTING_TOPIC" default:"club-ledger-events"`
}

// Normalized returns the lower-cased transport name.
func (e EventingConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(e.Transport))
}

func (e EventingConfig) validate(cfg Config) error {
	switch e.Normalized() {
	case TransportNone:
		return nil
	case TransportPubSub:
		if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when eventing transport is %q", EnvGCPProjectID, TransportPubSub)
		}
		return nil
	case TransportKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when eventing transport is %q", EnvKafkaBrokers, TransportKafka)
		}
		return nil
	}
	return fmt.Errorf("unsupported eventing transport %q", e.Transport)
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CLUBLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CLUBLEDGER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"CLUBLEDGER_PUBSUB_LEDGER_TOPIC"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"CLUBLEDGER_KAFKA_BROKERS"`
	ClientID     string        `envconfig:"CLUBLEDGER_KAFKA_CLIENT_ID" default:"clubledger"`
	WriteTimeout time.Duration `envconfig:"CLUBLEDGER_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLUBLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLUBLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLUBLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CLUBLEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CLUBLEDGER_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"CLUBLEDGER_CRON_LOCK_TTL" default:"1h"`
	// ReconcileRepair lets the nightly reconcile rewrite drifted balances.
	ReconcileRepair bool `envconfig:"CLUBLEDGER_CRON_RECONCILE_REPAIR" default:"true"`
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

// LedgerTopic is the broker topic ledger events publish to.
// A Pub/Sub specific override wins over the transport-neutral name.
func (c Config) LedgerTopic() string {
	if t := strings.TrimSpace(c.PubSub.LedgerTopic); t != "" && c.Eventing.Normalized() == TransportPubSub {
		return t
	}
	return strings.TrimSpace(c.Eventing.Topic)
}
