// Package config provides configuration management for the application.
// Precedence: built-in defaults, then an optional YAML file, then
// SYNCGATE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"syncgate/internal/storage"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "1h", or from integer nanoseconds.
type Duration time.Duration

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// RemoteConfig points at the upstream query service.
type RemoteConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// GatewayConfig controls caching and sync behavior.
type GatewayConfig struct {
	CacheEnabled bool `yaml:"cache_enabled"`
	// CacheTTL is the default lifetime of cached read results.
	CacheTTL Duration `yaml:"cache_ttl"`
	// SyncInterval is the periodic reconciliation cadence.
	SyncInterval Duration `yaml:"sync_interval"`
	// CleanupInterval is the cache expiry sweep cadence.
	CleanupInterval Duration `yaml:"cleanup_interval"`
	Debug           bool     `yaml:"debug"`
}

// StorageConfig selects and configures the persistence backends. Type is the
// shared default; CacheType and QueueType override it per store, so a redis
// cache can pair with a sqlite queue.
type StorageConfig struct {
	Type       string           `yaml:"type"`
	CacheType  string           `yaml:"cache_type"`
	QueueType  string           `yaml:"queue_type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
	Redis      RedisConfig      `yaml:"redis"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings.
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB settings.
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Remote: RemoteConfig{Timeout: Duration(30 * time.Second)},
		Gateway: GatewayConfig{
			CacheEnabled:    true,
			CacheTTL:        Duration(time.Hour),
			SyncInterval:    Duration(5 * time.Second),
			CleanupInterval: Duration(time.Hour),
		},
		Storage: StorageConfig{
			Type:       storage.TypeSQLite,
			SQLite:     SQLiteConfig{Path: storage.DefaultSQLitePath},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "syncgate"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Endpoint: "/metrics"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path (skipped when path is empty or missing), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays SYNCGATE_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix("SYNCGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setString := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	setBool := func(key string, dst *bool) {
		if v.GetString(key) != "" {
			*dst = v.GetBool(key)
		}
	}
	setDuration := func(key string, dst *Duration) error {
		s := v.GetString(key)
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	setString("server.port", &cfg.Server.Port)
	setString("remote.url", &cfg.Remote.URL)
	setString("storage.type", &cfg.Storage.Type)
	setString("storage.cache_type", &cfg.Storage.CacheType)
	setString("storage.queue_type", &cfg.Storage.QueueType)
	setString("storage.sqlite.path", &cfg.Storage.SQLite.Path)
	setString("storage.postgresql.url", &cfg.Storage.PostgreSQL.URL)
	setString("storage.mongodb.url", &cfg.Storage.MongoDB.URL)
	setString("storage.mongodb.database", &cfg.Storage.MongoDB.Database)
	setString("storage.redis.url", &cfg.Storage.Redis.URL)
	setString("logging.level", &cfg.Logging.Level)
	setString("logging.format", &cfg.Logging.Format)
	setString("metrics.endpoint", &cfg.Metrics.Endpoint)

	setBool("gateway.cache_enabled", &cfg.Gateway.CacheEnabled)
	setBool("gateway.debug", &cfg.Gateway.Debug)
	setBool("metrics.enabled", &cfg.Metrics.Enabled)

	if n := v.GetInt("storage.postgresql.max_conns"); n > 0 {
		cfg.Storage.PostgreSQL.MaxConns = n
	}

	for key, dst := range map[string]*Duration{
		"remote.timeout":           &cfg.Remote.Timeout,
		"gateway.cache_ttl":        &cfg.Gateway.CacheTTL,
		"gateway.sync_interval":    &cfg.Gateway.SyncInterval,
		"gateway.cleanup_interval": &cfg.Gateway.CleanupInterval,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the application cannot run with. The cache
// and queue stores support different backend sets, so each resolved type is
// checked against its own matrix rather than one shared whitelist.
func (c *Config) Validate() error {
	for _, typ := range []string{c.Storage.resolvedCacheType(), c.Storage.resolvedQueueType()} {
		switch typ {
		case storage.TypeMemory, storage.TypeSQLite, storage.TypePostgreSQL, storage.TypeMongoDB, storage.TypeRedis:
		default:
			return fmt.Errorf("unknown storage type: %q", typ)
		}
	}
	switch c.Storage.resolvedCacheType() {
	case storage.TypeMemory, storage.TypeSQLite, storage.TypeMongoDB, storage.TypeRedis:
	default:
		return fmt.Errorf("storage type %q cannot back the cache store (supported: memory, sqlite, mongodb, redis); set storage.cache_type to override the shared storage.type",
			c.Storage.resolvedCacheType())
	}
	switch c.Storage.resolvedQueueType() {
	case storage.TypeMemory, storage.TypeSQLite, storage.TypePostgreSQL, storage.TypeMongoDB:
	default:
		return fmt.Errorf("storage type %q cannot back the operation queue (supported: memory, sqlite, postgresql, mongodb); set storage.queue_type to override the shared storage.type",
			c.Storage.resolvedQueueType())
	}
	if c.Gateway.CacheTTL < 0 {
		return fmt.Errorf("gateway.cache_ttl must not be negative")
	}
	if c.Gateway.SyncInterval <= 0 {
		return fmt.Errorf("gateway.sync_interval must be positive")
	}
	return nil
}

func (s StorageConfig) resolvedCacheType() string {
	if s.CacheType != "" {
		return s.CacheType
	}
	return s.Type
}

func (s StorageConfig) resolvedQueueType() string {
	if s.QueueType != "" {
		return s.QueueType
	}
	return s.Type
}

// Runtime converts the declarative storage section into the storage layer's
// config.
func (s StorageConfig) Runtime() storage.Config {
	return s.runtime(s.Type)
}

// CacheRuntime is the storage config backing the cache store.
func (s StorageConfig) CacheRuntime() storage.Config {
	return s.runtime(s.resolvedCacheType())
}

// QueueRuntime is the storage config backing the operation queue.
func (s StorageConfig) QueueRuntime() storage.Config {
	return s.runtime(s.resolvedQueueType())
}

func (s StorageConfig) runtime(typ string) storage.Config {
	return storage.Config{
		Type:       typ,
		SQLite:     storage.SQLiteConfig{Path: s.SQLite.Path},
		PostgreSQL: storage.PostgreSQLConfig{URL: s.PostgreSQL.URL, MaxConns: s.PostgreSQL.MaxConns},
		MongoDB:    storage.MongoDBConfig{URL: s.MongoDB.URL, Database: s.MongoDB.Database},
		Redis:      storage.RedisConfig{URL: s.Redis.URL},
	}
}
