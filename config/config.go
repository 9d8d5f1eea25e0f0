// Package config loads memoryd settings from an optional YAML file and
// NIM_MEMORY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. NIM_MEMORY_STORE_BACKEND.
const EnvPrefix = "NIM_MEMORY"

// Config is the complete memoryd configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	Recall   RecallConfig   `mapstructure:"recall"`
	Server   ServerConfig   `mapstructure:"server"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Backend is one of inmem, sqlite, chromem, redis, postgres, mongo.
	Backend        string `mapstructure:"backend"`
	Name           string `mapstructure:"name"`
	Dimensionality int    `mapstructure:"dimensionality"`
	MaxVectors     int    `mapstructure:"max_vectors"`
	CapacityPolicy string `mapstructure:"capacity_policy"`

	// Path is the sqlite file or chromem directory.
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`

	// URL is the postgres DSN or mongo URI.
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	Prefix   string `mapstructure:"prefix"`
}

// EmbedderConfig selects the embedding provider and its middleware.
type EmbedderConfig struct {
	// Provider is one of mock, openai, ollama, gemini, onnx, fastembed.
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`

	// Local model files for onnx and fastembed.
	ModelPath     string `mapstructure:"model_path"`
	TokenizerPath string `mapstructure:"tokenizer_path"`
	LibraryPath   string `mapstructure:"library_path"`
	CacheDir      string `mapstructure:"cache_dir"`

	Timeout time.Duration `mapstructure:"timeout"`

	// CacheEntries enables the embedding cache when positive.
	CacheEntries int64 `mapstructure:"cache_entries"`

	// RateLimit caps provider calls per second when positive.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// RecallConfig holds Manager defaults.
type RecallConfig struct {
	K               int     `mapstructure:"k"`
	Threshold       float64 `mapstructure:"threshold"`
	DefaultCategory string  `mapstructure:"default_category"`
}

// ServerConfig configures the websocket server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BackupConfig locates the object storage used for remote backups.
// Endpoint empty disables remote backups.
type BackupConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`

	// Interval uploads a snapshot periodically when positive.
	Interval time.Duration `mapstructure:"interval"`
}

// AgentConfig configures the interactive chat mode.
type AgentConfig struct {
	// APIKey falls back to ANTHROPIC_API_KEY.
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	MaxTurns  int    `mapstructure:"max_turns"`
}

// Load reads path when non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.name", "GeminiNanoVectors")
	v.SetDefault("store.dimensionality", 384)
	v.SetDefault("store.max_vectors", 5000)
	v.SetDefault("store.capacity_policy", "evict_oldest")
	v.SetDefault("store.path", "nim-memory.db")
	v.SetDefault("store.compress", false)
	v.SetDefault("store.url", "")
	v.SetDefault("store.database", "nim_memory")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.database", 0)
	v.SetDefault("store.redis.prefix", "nim-memory")

	v.SetDefault("embedder.provider", "mock")
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.api_key", "")
	v.SetDefault("embedder.base_url", "")
	v.SetDefault("embedder.dimensions", 0)
	v.SetDefault("embedder.model_path", "")
	v.SetDefault("embedder.tokenizer_path", "")
	v.SetDefault("embedder.library_path", "")
	v.SetDefault("embedder.cache_dir", "")
	v.SetDefault("embedder.timeout", "60s")
	v.SetDefault("embedder.cache_entries", 10000)
	v.SetDefault("embedder.rate_limit", 0)
	v.SetDefault("embedder.burst", 1)

	v.SetDefault("recall.k", 3)
	v.SetDefault("recall.threshold", 0.7)
	v.SetDefault("recall.default_category", "general")

	v.SetDefault("server.addr", "127.0.0.1:7077")
	v.SetDefault("server.request_timeout", "30s")

	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")
	v.SetDefault("backup.bucket", "nim-memory")
	v.SetDefault("backup.prefix", "backups/")
	v.SetDefault("backup.secure", true)
	v.SetDefault("backup.interval", "0s")

	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.model", "claude-sonnet-4-20250514")
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("agent.max_turns", 10)
}

// Validate checks the settings that cannot be caught later by the
// components themselves.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "inmem", "sqlite", "chromem", "redis":
	case "postgres", "mongo":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Dimensionality <= 0 {
		return errors.New("store.dimensionality must be positive")
	}
	if c.Embedder.Provider == "" {
		return errors.New("embedder.provider is required")
	}
	if c.Recall.K <= 0 {
		return errors.New("recall.k must be positive")
	}
	return nil
}

// Logger builds a slog.Logger writing to stderr.
func (c LogConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
