package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"tulip-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"" validate:"required"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:"" validate:"required"`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:"" validate:"required"`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"tulip"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SQL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis is optional; when the host is empty the CRM enrichment cache
	// is disabled and lookups always hit the API.
	RedisHost string `env:"REDIS_HOST" env-default:""`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated); empty disables event publishing
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for sync and ingest lifecycle events
	KafkaEventTopic string `env:"KAFKA_EVENT_TOPIC" env-default:"tulip-events"`

	// Deals sheet settings: the authoritative spreadsheet is required
	SheetDealsSpreadsheetID string `env:"SHEET_DEALS_SPREADSHEET_ID" env-default:"" validate:"required"`
	// Deals sheet tab gid
	SheetDealsGID int64 `env:"SHEET_DEALS_GID" env-default:"0"`
	// Reference sheet spreadsheet id; empty degrades categorization
	SheetReferenceSpreadsheetID string `env:"SHEET_REFERENCE_SPREADSHEET_ID" env-default:""`
	// Reference sheet tab gid
	SheetReferenceGID int64 `env:"SHEET_REFERENCE_GID" env-default:"0"`
	// Reference cache TTL
	ReferenceCacheTTL time.Duration `env:"REFERENCE_CACHE_TTL" env-default:"45m"`

	// CRM API base URL
	CRMBaseURL string `env:"CRM_BASE_URL" env-default:"" validate:"required"`
	// CRM device uuid used by the bulk enrichment endpoint
	CRMDeviceUUID string `env:"CRM_DEVICE_UUID" env-default:"" validate:"required"`
	// Enrichment batch size
	CRMBatchSize int `env:"CRM_BATCH_SIZE" env-default:"200"`
	// Pause between enrichment batches
	CRMBatchPause time.Duration `env:"CRM_BATCH_PAUSE" env-default:"1s"`
	// Enrichment cache TTL
	CRMCacheTTL time.Duration `env:"CRM_CACHE_TTL" env-default:"30m"`

	// Scheduler settings
	// Interval between automatic fast resyncs
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" env-default:"10m"`
	// Enable/disable the scheduler
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" env-default:"true"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}
