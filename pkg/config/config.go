package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Delivery      DeliveryConfig
	Tracking      TrackingConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Tracking.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MYGROS_APP_ENV" required:"true"`
	Port         string `envconfig:"MYGROS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MYGROS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MYGROS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MYGROS_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"MYGROS_CORS_ORIGINS" default:"*"`
	MetricsPort  string `envconfig:"MYGROS_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"MYGROS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MYGROS_DB_DSN"`
	Driver string `envconfig:"MYGROS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MYGROS_DB_HOST"`
	Port     int    `envconfig:"MYGROS_DB_PORT" default:"5432"`
	User     string `envconfig:"MYGROS_DB_USER"`
	Password string `envconfig:"MYGROS_DB_PASSWORD"`
	Name     string `envconfig:"MYGROS_DB_NAME"`
	SSLMode  string `envconfig:"MYGROS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MYGROS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MYGROS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MYGROS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MYGROS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MYGROS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MYGROS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MYGROS_REDIS_ADDR"`
	Password     string        `envconfig:"MYGROS_REDIS_PASSWORD"`
	DB           int           `envconfig:"MYGROS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MYGROS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MYGROS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MYGROS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MYGROS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MYGROS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MYGROS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MYGROS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MYGROS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MYGROS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MYGROS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MYGROS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MYGROS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MYGROS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MYGROS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MYGROS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MYGROS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MYGROS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MYGROS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MYGROS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MYGROS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ContactWindow      time.Duration `envconfig:"MYGROS_RATE_LIMIT_CONTACT_WINDOW" default:"10m"`
	ContactIPLimit     int           `envconfig:"MYGROS_RATE_LIMIT_CONTACT_IP_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MYGROS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MYGROS_AUTO_MIGRATE" default:"false"`
}

// DeliveryConfig holds the per-zone flat fee schedule. A free threshold of
// zero means the zone never ships for free.
type DeliveryConfig struct {
	LocalFee              string `envconfig:"MYGROS_DELIVERY_LOCAL_FEE" default:"8"`
	LocalFreeThreshold    string `envconfig:"MYGROS_DELIVERY_LOCAL_FREE_THRESHOLD" default:"200"`
	LocalCarrier          string `envconfig:"MYGROS_DELIVERY_LOCAL_CARRIER" default:"internal"`
	NationalFee           string `envconfig:"MYGROS_DELIVERY_NATIONAL_FEE" default:"15"`
	NationalFreeThreshold string `envconfig:"MYGROS_DELIVERY_NATIONAL_FREE_THRESHOLD" default:"0"`
	NationalCarrier       string `envconfig:"MYGROS_DELIVERY_NATIONAL_CARRIER" default:"colissimo"`
}

type TrackingConfig struct {
	Policy        string `envconfig:"MYGROS_TRACKING_POLICY" default:"strict"`
	AdminOverride bool   `envconfig:"MYGROS_TRACKING_ADMIN_OVERRIDE" default:"true"`
}

func (t TrackingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(t.Policy)) {
	case TrackingPolicyStrict, TrackingPolicyPermissive:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvTrackingPolicy, TrackingPolicyStrict, TrackingPolicyPermissive)
	}
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MYGROS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	Broker               string        `envconfig:"MYGROS_EVENTING_BROKER" default:"pubsub"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Broker)) {
	case BrokerPubSub, BrokerKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvEventingBroker, BrokerPubSub, BrokerKafka)
	}
}

// UsesKafka reports whether the outbox relay targets Kafka instead of Pub/Sub.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Broker), BrokerKafka)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MYGROS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MYGROS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MYGROS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"MYGROS_PUBSUB_ORDERS_TOPIC" default:"mg-order-events"`
	NotificationTopic     string `envconfig:"MYGROS_PUBSUB_NOTIFICATION_TOPIC" default:"mg-notification-events"`
	AnalyticsTopic        string `envconfig:"MYGROS_PUBSUB_ANALYTICS_TOPIC" default:"mg-analytics-events"`
	AnalyticsSubscription string `envconfig:"MYGROS_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"mg-analytics-worker"`

	NotificationSubscription string `envconfig:"MYGROS_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"mg-notification-worker"`
}

type KafkaConfig struct {
	Brokers      string        `envconfig:"MYGROS_KAFKA_BROKERS" default:"localhost:9092"`
	WriteTimeout time.Duration `envconfig:"MYGROS_KAFKA_WRITE_TIMEOUT" default:"5s"`
}

// BrokerList splits the comma separated broker addresses.
func (k KafkaConfig) BrokerList() []string {
	parts := strings.Split(k.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"MYGROS_BIGQUERY_DATASET" default:"mygros"`
	SalesEventsTable string `envconfig:"MYGROS_BIGQUERY_SALES_TABLE" default:"sales_events"`
	// CreateTables lets the analytics worker create a missing sales table,
	// day-partitioned on occurred_at. The dataset itself must already exist.
	CreateTables bool `envconfig:"MYGROS_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MYGROS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MYGROS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MYGROS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MaintenanceConfig drives the cron worker.
type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"MYGROS_MAINTENANCE_INTERVAL" default:"24h"`
	JobTimeout          time.Duration `envconfig:"MYGROS_MAINTENANCE_JOB_TIMEOUT" default:"15m"`
	OutboxRetentionDays int           `envconfig:"MYGROS_MAINTENANCE_OUTBOX_RETENTION_DAYS" default:"30"`
	CartRetentionDays   int           `envconfig:"MYGROS_MAINTENANCE_CART_RETENTION_DAYS" default:"45"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DBDriverSQLite) {
		db.DSN = "file:mygros.db?cache=shared&_fk=1"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
