package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "github.com/loanlens/loanlens/pkg/errors"
)

// envPrefix is prepended to environment variable names, so
// LOANLENS_DATABASE_HOST overrides database.host.
const envPrefix = "LOANLENS"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers every config key with viper. Unmarshal only consults
// the environment for keys viper already knows about, so without this an
// env-only deployment (no config file) would read nothing.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.port", "server.read_timeout", "server.write_timeout",
		"server.max_upload_bytes", "server.shutdown_timeout", "server.cors_origins",
		"database.host", "database.port", "database.user", "database.password",
		"database.db_name", "database.ssl_mode", "database.max_conns",
		"database.min_conns", "database.conn_max_lifetime",
		"database.conn_max_idle_time", "database.migrate_on_start",
		"redis.addr", "redis.password", "redis.db", "redis.pool_size",
		"redis.min_idle_conns", "redis.dial_timeout", "redis.read_timeout",
		"redis.write_timeout", "redis.default_ttl", "redis.key_prefix",
		"kafka.brokers", "kafka.group_id", "kafka.auto_offset_reset",
		"kafka.producer_retries", "kafka.batch_size",
		"minio.endpoint", "minio.access_key", "minio.secret_key",
		"minio.bucket", "minio.use_ssl", "minio.presign_expiry",
		"analyzer.backend", "analyzer.base_url", "analyzer.api_key",
		"analyzer.model", "analyzer.timeout", "analyzer.max_input_chars",
		"analyzer.max_retries", "analyzer.retry_backoff",
		"highlight.partial_min_words", "highlight.partial_prefix_words",
		"highlight.token_min_length", "highlight.token_max_count",
		"highlight.text_layer_wait", "highlight.session_limit",
		"worker.concurrency", "worker.max_retries", "worker.retry_backoff",
		"worker.handler_timeout", "worker.health_port",
		"metrics.enabled", "metrics.path", "metrics.namespace",
		"log.level", "log.format", "log.output",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Load reads configuration from the given YAML file, layering environment
// variables on top, then applies defaults and validates. An empty path skips
// the file and uses environment variables and defaults only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "read config file")
		}
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds configuration from environment variables and defaults
// alone. Used by the worker and by tests that have no config file.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "unmarshal config")
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch reloads the config file whenever it changes on disk and delivers the
// re-validated result to onChange. Reload failures are reported through
// onError and the previous configuration stays in effect.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "config watch requires a file path")
	}
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "read config file")
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
