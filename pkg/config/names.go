package config

// EnvPrefix is passed to envconfig.Process. Every field carries an explicit
// tag, so the prefix only matters for untagged additions.
const EnvPrefix = "tripfacts"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "TRIPFACTS_APP_ENV"
	EnvAppPort  = "TRIPFACTS_APP_PORT"
	EnvLogLevel = "TRIPFACTS_LOG_LEVEL"

	EnvDBDSN  = "TRIPFACTS_DB_DSN"
	EnvDBHost = "TRIPFACTS_DB_HOST"
	EnvDBUser = "TRIPFACTS_DB_USER"
	EnvDBName = "TRIPFACTS_DB_NAME"

	EnvRedisURL = "TRIPFACTS_REDIS_URL"

	EnvPipelineInputDir      = "TRIPFACTS_PIPELINE_INPUT_DIR"
	EnvPipelineDimensionPath = "TRIPFACTS_PIPELINE_DIMENSION_PATH"
	EnvPipelineOutputDir     = "TRIPFACTS_PIPELINE_OUTPUT_DIR"
	EnvPipelineWatermark     = "TRIPFACTS_PIPELINE_WATERMARK"

	EnvStorageBackend = "TRIPFACTS_STORAGE_BACKEND"
	EnvS3Endpoint     = "TRIPFACTS_S3_ENDPOINT"
	EnvS3Bucket       = "TRIPFACTS_S3_BUCKET"

	EnvTriggerRabbitURL = "TRIPFACTS_TRIGGER_RABBIT_URL"
	EnvTriggerInterval  = "TRIPFACTS_TRIGGER_INTERVAL"

	EnvGCPProjectID = "TRIPFACTS_GCP_PROJECT_ID"
	EnvRunsTopic    = "TRIPFACTS_PUBSUB_RUNS_TOPIC"

	EnvRDWHost     = "TRIPFACTS_RDW_HOST"
	EnvRDWAppToken = "TRIPFACTS_RDW_APP_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
