// Package config defines all configuration structures for LoanLens.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// AnalyzerConfig holds document-analyzer backend parameters. When APIKey is
// empty the heuristic analyzer is used regardless of Backend.
type AnalyzerConfig struct {
	Backend       string        `mapstructure:"backend"` // "llm" | "heuristic" | "auto"
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxInputChars int           `mapstructure:"max_input_chars"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// HighlightConfig holds the snippet-matching thresholds and the text-layer
// wait budget. The numeric cutoffs are tunables, not constants: they shape
// the precision/recall trade-off of the three matching tiers.
type HighlightConfig struct {
	// PartialMinWords is the minimum word count (exclusive) a normalized
	// snippet needs before the prefix tier is attempted.
	PartialMinWords int `mapstructure:"partial_min_words"`

	// PartialPrefixWords is how many leading words the prefix tier searches.
	PartialPrefixWords int `mapstructure:"partial_prefix_words"`

	// TokenMinLength is the length (exclusive) a word must exceed to count
	// as a key token.
	TokenMinLength int `mapstructure:"token_min_length"`

	// TokenMaxCount caps how many key tokens are extracted.
	TokenMaxCount int `mapstructure:"token_max_count"`

	// TextLayerWait bounds how long the coordinator waits for a page's text
	// layer to materialize before matching.
	TextLayerWait time.Duration `mapstructure:"text_layer_wait"`

	// SessionLimit bounds how many per-document highlight sessions may be
	// live at once.
	SessionLimit int `mapstructure:"session_limit"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	HealthPort     int           `mapstructure:"health_port"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the whole service. Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Highlight HighlightConfig `mapstructure:"highlight"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("config: server.max_upload_bytes must be >= 1, got %d", c.Server.MaxUploadBytes)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("config: database.min_conns %d exceeds max_conns %d",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	switch c.Analyzer.Backend {
	case "llm", "heuristic", "auto":
	default:
		return fmt.Errorf("config: analyzer.backend %q is invalid; expected llm|heuristic|auto", c.Analyzer.Backend)
	}
	if c.Analyzer.MaxInputChars < 1 {
		return fmt.Errorf("config: analyzer.max_input_chars must be >= 1, got %d", c.Analyzer.MaxInputChars)
	}

	if err := c.Highlight.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// Validate checks the matching thresholds individually so the highlight
// engine can also be configured standalone (CLI, tests).
func (h HighlightConfig) Validate() error {
	if h.PartialMinWords < 1 {
		return fmt.Errorf("config: highlight.partial_min_words must be >= 1, got %d", h.PartialMinWords)
	}
	if h.PartialPrefixWords < 1 {
		return fmt.Errorf("config: highlight.partial_prefix_words must be >= 1, got %d", h.PartialPrefixWords)
	}
	if h.PartialPrefixWords < h.PartialMinWords {
		return fmt.Errorf("config: highlight.partial_prefix_words %d must be >= partial_min_words %d",
			h.PartialPrefixWords, h.PartialMinWords)
	}
	if h.TokenMinLength < 1 {
		return fmt.Errorf("config: highlight.token_min_length must be >= 1, got %d", h.TokenMinLength)
	}
	if h.TokenMaxCount < 1 {
		return fmt.Errorf("config: highlight.token_max_count must be >= 1, got %d", h.TokenMaxCount)
	}
	if h.TextLayerWait <= 0 {
		return fmt.Errorf("config: highlight.text_layer_wait must be positive, got %s", h.TextLayerWait)
	}
	if h.SessionLimit < 1 {
		return fmt.Errorf("config: highlight.session_limit must be >= 1, got %d", h.SessionLimit)
	}
	return nil
}
