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
	Pipeline     PipelineConfig
	Storage      StorageConfig
	DB           DBConfig
	Redis        RedisConfig
	Trigger      TriggerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	RDW          RDWConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"TRIPFACTS_APP_ENV" required:"true"`
	Port         string `envconfig:"TRIPFACTS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TRIPFACTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRIPFACTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRIPFACTS_SERVICE_KIND" default:"pipeline"`
}

// PipelineConfig carries the batch run inputs. The one-shot CLI overrides
// these with flags; the worker requires them from the environment.
type PipelineConfig struct {
	InputDir      string `envconfig:"TRIPFACTS_PIPELINE_INPUT_DIR"`
	DimensionPath string `envconfig:"TRIPFACTS_PIPELINE_DIMENSION_PATH"`
	OutputDir     string `envconfig:"TRIPFACTS_PIPELINE_OUTPUT_DIR"`
	Watermark     string `envconfig:"TRIPFACTS_PIPELINE_WATERMARK"`
}

type StorageConfig struct {
	Backend string `envconfig:"TRIPFACTS_STORAGE_BACKEND" default:"local"`

	S3Endpoint  string `envconfig:"TRIPFACTS_S3_ENDPOINT"`
	S3AccessKey string `envconfig:"TRIPFACTS_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"TRIPFACTS_S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"TRIPFACTS_S3_BUCKET"`
	S3UseSSL    bool   `envconfig:"TRIPFACTS_S3_USE_SSL" default:"false"`
}

func (s StorageConfig) IsObject() bool {
	return strings.EqualFold(s.Backend, StorageBackendS3)
}

type DBConfig struct {
	DSN    string `envconfig:"TRIPFACTS_DB_DSN"`
	Driver string `envconfig:"TRIPFACTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRIPFACTS_DB_HOST"`
	LegacyPort     int    `envconfig:"TRIPFACTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRIPFACTS_DB_USER"`
	LegacyPassword string `envconfig:"TRIPFACTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRIPFACTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRIPFACTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRIPFACTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRIPFACTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRIPFACTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRIPFACTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Enabled reports whether a run-history database is configured at all.
// The pipeline runs fine without one.
func (db DBConfig) Enabled() bool {
	return db.DSN != ""
}

type RedisConfig struct {
	URL          string        `envconfig:"TRIPFACTS_REDIS_URL"`
	Address      string        `envconfig:"TRIPFACTS_REDIS_ADDR"`
	Password     string        `envconfig:"TRIPFACTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRIPFACTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRIPFACTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRIPFACTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRIPFACTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRIPFACTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRIPFACTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// TriggerConfig selects what drives worker runs. With a Rabbit URL set the
// worker consumes watermark jobs from the queue, otherwise it ticks.
type TriggerConfig struct {
	RabbitURL   string        `envconfig:"TRIPFACTS_TRIGGER_RABBIT_URL"`
	RabbitQueue string        `envconfig:"TRIPFACTS_TRIGGER_RABBIT_QUEUE" default:"tripfacts-runs"`
	Interval    time.Duration `envconfig:"TRIPFACTS_TRIGGER_INTERVAL" default:"24h"`
	LockTTL     time.Duration `envconfig:"TRIPFACTS_TRIGGER_LOCK_TTL" default:"2h"`
}

func (t TriggerConfig) UseRabbit() bool {
	return t.RabbitURL != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRIPFACTS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRIPFACTS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRIPFACTS_GOOGLE_APPLICATION_CREDENTIALS"`
}

func (g GCPConfig) Enabled() bool {
	return g.ProjectID != ""
}

type PubSubConfig struct {
	RunsTopic string `envconfig:"TRIPFACTS_PUBSUB_RUNS_TOPIC" default:"tripfacts-run-events"`
	Publish   bool   `envconfig:"TRIPFACTS_PUBSUB_PUBLISH" default:"false"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"TRIPFACTS_BIGQUERY_DATASET" default:"tripfacts"`
	DailyTable        string `envconfig:"TRIPFACTS_BIGQUERY_DAILY_TABLE" default:"daily_trips"`
	DailyCountryTable string `envconfig:"TRIPFACTS_BIGQUERY_DAILY_COUNTRY_TABLE" default:"daily_country_trips"`
	Export            bool   `envconfig:"TRIPFACTS_BIGQUERY_EXPORT" default:"false"`
}

type RDWConfig struct {
	Host     string        `envconfig:"TRIPFACTS_RDW_HOST" default:"https://opendata.rdw.nl"`
	AppToken string        `envconfig:"TRIPFACTS_RDW_APP_TOKEN"`
	Timeout  time.Duration `envconfig:"TRIPFACTS_RDW_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRIPFACTS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRIPFACTS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	// No DSN and no legacy parts means the run-history DB is simply off.
	if db.LegacyHost == "" && db.LegacyUser == "" && db.LegacyName == "" {
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
