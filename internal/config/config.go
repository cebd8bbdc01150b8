// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	Upload     UploadConfig
	Rate       RateLimitConfig
	Kafka      KafkaConfig
	Normalizer NormalizerConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including the wait for
	// in-flight uploads (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-upload requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Required when Store.Driver is
	// "postgres". DB_URL is accepted for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StoreConfig selects the destination store.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite" (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `env:"SQLITE_PATH" default:"data/airwarehouse.db"`

	// FallbackQuarantinePath, when set, is a SQLite file that receives
	// quarantine batches the primary store failed to write.
	FallbackQuarantinePath string `env:"QUARANTINE_FALLBACK_PATH"`

	// AutoMigrate creates missing tables on startup (default: true)
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" default:"true"`
}

// UploadConfig holds upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum request body in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of one clean-and-commit (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// KafkaConfig holds the streaming loop settings.
type KafkaConfig struct {
	Enabled    bool     `env:"KAFKA_ENABLED" default:"false"`
	Brokers    []string `env:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID    string   `env:"KAFKA_GROUP_ID" default:"airwarehouse-cleaner"`
	ClientID   string   `env:"KAFKA_CLIENT_ID" default:"airwarehouse"`
	RawTopic   string   `env:"KAFKA_RAW_TOPIC" default:"raw-data"`
	CleanTopic string   `env:"KAFKA_CLEAN_TOPIC" default:"cleaned-data"`

	// PollTimeout is how long one poll waits for a message (default: 1s)
	PollTimeout time.Duration `env:"KAFKA_POLL_TIMEOUT" default:"1s"`

	// CreateTopics creates the raw and clean topics on startup (default: true)
	CreateTopics bool `env:"KAFKA_CREATE_TOPICS" default:"true"`
	Partitions   int  `env:"KAFKA_TOPIC_PARTITIONS" default:"1"`
}

// NormalizerConfig sets where synthetic key sequences start.
type NormalizerConfig struct {
	PassengerSeqStart   int64 `env:"PASSENGER_SEQ_START" default:"1000"`
	TransactionSeqStart int64 `env:"TRANSACTION_SEQ_START" default:"40000"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables API key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
