// Package config loads the YAML configuration used by the minutes command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/minutes/ai"
	"gopkg.in/yaml.v3"
)

// Config holds the minutes configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Host      string        `yaml:"host"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SearchConfig holds query settings.
type SearchConfig struct {
	DefaultResults int           `yaml:"default_results"`
	Oversample     int           `yaml:"oversample"`
	Timeout        time.Duration `yaml:"timeout"` // 0 = unbounded
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // default: <data_dir>/embcache
}

// IngestionConfig holds indexing settings.
type IngestionConfig struct {
	PoolSize  int `yaml:"pool_size"`
	BatchSize int `yaml:"batch_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// Defaults.
const (
	DefaultDataDir        = "data"
	DefaultCacheDir       = "embcache"
	DefaultLogLevel       = "info"
	DefaultDefaultResults = 5
	DefaultOversample     = 20
	DefaultBatchSize      = 16
)

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads configuration from a YAML file. An empty path or a missing
// file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	def := ai.DefaultConfig()

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Embedding.Host == "" {
		c.Embedding.Host = def.EmbeddingHost
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = def.EmbeddingModel
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = def.Dimension
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = def.Timeout
	}
	if c.Search.DefaultResults == 0 {
		c.Search.DefaultResults = DefaultDefaultResults
	}
	if c.Search.Oversample == 0 {
		c.Search.Oversample = DefaultOversample
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.DataDir, DefaultCacheDir)
	}
	if c.Ingestion.BatchSize == 0 {
		c.Ingestion.BatchSize = DefaultBatchSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Timeout < 0 {
		return fmt.Errorf("embedding.timeout cannot be negative, got %s", c.Embedding.Timeout)
	}
	if c.Search.DefaultResults < 1 {
		return fmt.Errorf("search.default_results must be at least 1, got %d", c.Search.DefaultResults)
	}
	if c.Search.Oversample < 1 {
		return fmt.Errorf("search.oversample must be at least 1, got %d", c.Search.Oversample)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("search.timeout cannot be negative, got %s", c.Search.Timeout)
	}
	if c.Ingestion.PoolSize < 0 {
		return fmt.Errorf("ingestion.pool_size cannot be negative, got %d", c.Ingestion.PoolSize)
	}
	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be at least 1, got %d", c.Ingestion.BatchSize)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithDimension(c.Embedding.Dimension),
		ai.WithTimeout(c.Embedding.Timeout),
	)
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		name, fallback, hasDefault := strings.Cut(string(match[2:len(match)-1]), ":-")
		val, ok := os.LookupEnv(name)
		if (!ok || val == "") && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}
