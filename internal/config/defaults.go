package config

import "time"

// Default values applied to zero fields after unmarshalling.
const (
	DefaultServerPort      = 8080
	DefaultMaxUploadBytes  = 32 << 20 // 32 MiB
	DefaultShutdownTimeout = 15 * time.Second

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "loanlens"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 30 * time.Minute
	DefaultRedisKeyPrefix = "loanlens"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "loanlens-workers"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "loanlens-documents"

	DefaultAnalyzerBackend   = "auto"
	DefaultAnalyzerTimeout   = 60 * time.Second
	DefaultAnalyzerMaxChars  = 15000
	DefaultAnalyzerRetries   = 2
	DefaultAnalyzerBackoff   = 2 * time.Second

	DefaultPartialMinWords    = 5
	DefaultPartialPrefixWords = 15
	DefaultTokenMinLength     = 4
	DefaultTokenMaxCount      = 5
	DefaultTextLayerWait      = 400 * time.Millisecond
	DefaultSessionLimit       = 128

	DefaultWorkerConcurrency    = 4
	DefaultWorkerMaxRetries     = 3
	DefaultWorkerRetryBackoff   = time.Second
	DefaultWorkerHandlerTimeout = 5 * time.Minute
	DefaultWorkerHealthPort     = 8081

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "loanlens"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the platform
// default. Fields already set by the caller are left unchanged so explicit
// configuration always wins. Must run after unmarshalling and before
// Validate() so optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// ── Database ──────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "loanlens"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 5 * time.Minute
	}

	// ── Redis ─────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}

	// ── MinIO ─────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = time.Hour
	}

	// ── Analyzer ──────────────────────────────────────────────────────────
	if cfg.Analyzer.Backend == "" {
		cfg.Analyzer.Backend = DefaultAnalyzerBackend
	}
	if cfg.Analyzer.Timeout == 0 {
		cfg.Analyzer.Timeout = DefaultAnalyzerTimeout
	}
	if cfg.Analyzer.MaxInputChars == 0 {
		cfg.Analyzer.MaxInputChars = DefaultAnalyzerMaxChars
	}
	if cfg.Analyzer.MaxRetries == 0 {
		cfg.Analyzer.MaxRetries = DefaultAnalyzerRetries
	}
	if cfg.Analyzer.RetryBackoff == 0 {
		cfg.Analyzer.RetryBackoff = DefaultAnalyzerBackoff
	}

	// ── Highlight ─────────────────────────────────────────────────────────
	if cfg.Highlight.PartialMinWords == 0 {
		cfg.Highlight.PartialMinWords = DefaultPartialMinWords
	}
	if cfg.Highlight.PartialPrefixWords == 0 {
		cfg.Highlight.PartialPrefixWords = DefaultPartialPrefixWords
	}
	if cfg.Highlight.TokenMinLength == 0 {
		cfg.Highlight.TokenMinLength = DefaultTokenMinLength
	}
	if cfg.Highlight.TokenMaxCount == 0 {
		cfg.Highlight.TokenMaxCount = DefaultTokenMaxCount
	}
	if cfg.Highlight.TextLayerWait == 0 {
		cfg.Highlight.TextLayerWait = DefaultTextLayerWait
	}
	if cfg.Highlight.SessionLimit == 0 {
		cfg.Highlight.SessionLimit = DefaultSessionLimit
	}

	// ── Worker ────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultWorkerMaxRetries
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = DefaultWorkerRetryBackoff
	}
	if cfg.Worker.HandlerTimeout == 0 {
		cfg.Worker.HandlerTimeout = DefaultWorkerHandlerTimeout
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}

	// ── Metrics ───────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// DefaultHighlight returns a standalone HighlightConfig with all defaults
// applied. The CLI and tests use it when no config file is involved.
func DefaultHighlight() HighlightConfig {
	return HighlightConfig{
		PartialMinWords:    DefaultPartialMinWords,
		PartialPrefixWords: DefaultPartialPrefixWords,
		TokenMinLength:     DefaultTokenMinLength,
		TokenMaxCount:      DefaultTokenMaxCount,
		TextLayerWait:      DefaultTextLayerWait,
		SessionLimit:       DefaultSessionLimit,
	}
}
