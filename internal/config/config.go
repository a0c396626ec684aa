// Package config loads and saves the schemarecall configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/localrivet/configurator"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/logger"
	"github.com/localrivet/schemarecall/internal/snapshot"
	"github.com/localrivet/schemarecall/internal/vector"
)

// Config represents the SchemaRecall configuration
type Config struct {
	// Store contains storage-related configuration.
	Store struct {
		// Path is the directory holding the persisted snapshot.
		Path string `json:"path" env:"STORE_PATH" validate:"required"`

		// Backend selects the snapshot format ("file", "sqlite").
		Backend string `json:"backend" env:"STORE_BACKEND" validate:"required"`

		// Compression applies to the file backend's vector artifact ("none", "zstd", "lz4").
		Compression string `json:"compression" env:"STORE_COMPRESSION"`
	} `json:"store"`

	// Embedder contains embedding-related configuration.
	Embedder struct {
		// Provider is the name of the embedding provider to use ("mock", "openai", "dashscope").
		Provider string `json:"provider" env:"EMBEDDER_PROVIDER" validate:"required"`

		// Model is the provider's embedding model.
		Model string `json:"model" env:"EMBEDDER_MODEL"`

		// BaseURL overrides the provider endpoint.
		BaseURL string `json:"base_url" env:"EMBEDDER_BASE_URL"`

		// ApiKey is the API key for the embedding provider.
		ApiKey string `json:"api_key" env:"EMBEDDER_API_KEY"`

		// Dimensions requests a vector size. Zero lets the model decide.
		Dimensions int `json:"dimensions" env:"EMBEDDER_DIMENSIONS"`

		// Timeout bounds a single provider request, in seconds.
		TimeoutSeconds int `json:"timeout_seconds" env:"EMBEDDER_TIMEOUT_SECONDS"`
	} `json:"embedder"`

	// Retrieval contains query-related configuration.
	Retrieval struct {
		// TopN is the number of candidates pulled before filtering by kind.
		TopN int `json:"top_n" env:"RETRIEVAL_TOP_N" validate:"min:1"`
	} `json:"retrieval"`

	// Logging contains logging-related configuration.
	Logging struct {
		// Level is the minimum log level to display ("debug", "info", "warn", "error").
		Level string `json:"level" env:"LOG_LEVEL" validate:"required"`

		// Format is the log format to use ("text", "json").
		Format string `json:"format" env:"LOG_FORMAT"`
	} `json:"logging"`

	// Internal state (not saved to config file)
	configPath     string       `json:"-"`
	mutex          sync.RWMutex `json:"-"`
	lastModifiedAt time.Time    `json:"-"`
}

// Default configuration values
const (
	DefaultConfigFilename = ".schemarecallconfig"
	DefaultStorePath      = "./data/schemarecall"
	DefaultBackend        = snapshot.BackendFile
	DefaultCompression    = "none"
	DefaultProvider       = vector.ProviderMock
	DefaultModel          = vector.ModelDashScopeV3
	DefaultTopN           = 10
	DefaultTimeoutSeconds = 30
	DefaultLogLevel       = "info"
	DefaultLogFormat      = logger.FormatText

	// EnvPrefix is prepended to every env tag, e.g. SCHEMARECALL_STORE_PATH.
	EnvPrefix = "SCHEMARECALL"
)

// Environment variables honoured for compatibility with existing deployments
// when the prefixed variables are not set.
const (
	legacyEnvAPIKey  = "EMBEDDING_API_KEY"
	legacyEnvBaseURL = "EMBEDDING_BASE_URL"
	legacyEnvModel   = "EMBEDDING_MODEL"
	legacyEnvPath    = "FAISS_PATH"
)

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	config := &Config{}
	config.Store.Path = DefaultStorePath
	config.Store.Backend = DefaultBackend
	config.Store.Compression = DefaultCompression
	config.Embedder.Provider = DefaultProvider
	config.Embedder.Model = DefaultModel
	config.Embedder.TimeoutSeconds = DefaultTimeoutSeconds
	config.Retrieval.TopN = DefaultTopN
	config.Logging.Level = DefaultLogLevel
	config.Logging.Format = DefaultLogFormat
	return config
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath(DefaultConfigFilename)
}

// LoadConfigWithPath loads defaults, then the file at configPath if it
// exists, then SCHEMARECALL_* environment variables.
func LoadConfigWithPath(configPath string) (*Config, error) {
	// Configuration loading logs to stderr; stdout carries the MCP stream.
	stdLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg := NewConfig()

	if configPath == "" {
		configPath = DefaultConfigFilename
	}

	// Try to find config file if path is default
	if configPath == DefaultConfigFilename {
		foundPath, err := configurator.FindConfigFile(configPath)
		if err == nil {
			configPath = foundPath
			stdLogger.Debug("Found config file at " + foundPath)
		}
	}

	loader := configurator.New(stdLogger).
		WithProvider(configurator.NewDefaultProvider())

	if _, err := os.Stat(configPath); err == nil {
		stdLogger.Info("Loading configuration", "path", configPath)
		loader = loader.WithProvider(configurator.NewFileProvider(configPath))
	} else if os.IsNotExist(err) {
		stdLogger.Info("Config file not found, using default configuration", "path", configPath)
	} else {
		return nil, errortypes.ConfigError(err, "cannot read config file").WithField("path", configPath)
	}

	loader = loader.
		WithProvider(configurator.NewEnvProvider(EnvPrefix)).
		WithValidator(configurator.NewDefaultValidator())

	if err := loader.Load(context.Background(), cfg); err != nil {
		return nil, errortypes.ConfigError(err, "failed to load configuration")
	}

	cfg.applyLegacyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.configPath = configPath
	cfg.lastModifiedAt = time.Now()
	return cfg, nil
}

// applyLegacyEnv fills embedder and store settings from the unprefixed
// variables when they are still at their defaults. A legacy API key with
// the provider left at its default selects the DashScope endpoint those
// deployments use.
func (c *Config) applyLegacyEnv() {
	if v := os.Getenv(legacyEnvAPIKey); v != "" {
		if c.Embedder.ApiKey == "" {
			c.Embedder.ApiKey = v
		}
		if c.Embedder.Provider == DefaultProvider && os.Getenv(EnvPrefix+"_EMBEDDER_PROVIDER") == "" {
			c.Embedder.Provider = vector.ProviderDashScope
		}
	}
	if v := os.Getenv(legacyEnvBaseURL); v != "" && c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = v
	}
	if v := os.Getenv(legacyEnvModel); v != "" && c.Embedder.Model == DefaultModel {
		c.Embedder.Model = v
	}
	if v := os.Getenv(legacyEnvPath); v != "" && c.Store.Path == DefaultStorePath {
		c.Store.Path = v
	}
}

// Validate checks enumerated settings the struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Backend) {
	case snapshot.BackendFile, snapshot.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if _, err := snapshot.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}
	switch c.Embedder.Provider {
	case vector.ProviderMock, vector.ProviderOpenAI, vector.ProviderDashScope:
	default:
		errs = append(errs, fmt.Errorf("embedder.provider: unknown provider %q", c.Embedder.Provider))
	}
	if c.Embedder.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embedder.dimensions: must not be negative"))
	}
	if c.Retrieval.TopN < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_n: must be at least 1"))
	}
	switch c.Logging.Format {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errortypes.ConfigError(errors.Join(errs...), "invalid configuration")
	}
	return nil
}

// SaveToFile saves the configuration to the specified file
func (c *Config) SaveToFile(path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Create directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Save using configurator's SaveToFile function
	if err := configurator.SaveToFile(c, path, configurator.FormatJSON); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Update internal state
	c.configPath = path
	c.lastModifiedAt = time.Now()

	return nil
}

// GetConfigPath returns the path of the currently loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// ProviderConfig returns the embedder settings.
func (c *Config) ProviderConfig() vector.ProviderConfig {
	pc := vector.ProviderConfig{
		Provider:   c.Embedder.Provider,
		APIKey:     c.Embedder.ApiKey,
		Model:      c.Embedder.Model,
		BaseURL:    c.Embedder.BaseURL,
		Dimensions: c.Embedder.Dimensions,
	}
	if c.Embedder.TimeoutSeconds > 0 {
		pc.Timeout = time.Duration(c.Embedder.TimeoutSeconds) * time.Second
	}
	return pc
}

// SnapshotOptions returns the persistence settings.
func (c *Config) SnapshotOptions(l *slog.Logger) (snapshot.Options, error) {
	comp, err := snapshot.ParseCompression(c.Store.Compression)
	if err != nil {
		return snapshot.Options{}, errortypes.ConfigError(err, "invalid store.compression")
	}
	return snapshot.Options{
		Backend:     c.Store.Backend,
		Path:        c.Store.Path,
		Compression: comp,
		Logger:      l,
	}, nil
}

// NewLogger builds the application's slog logger from the logging section.
func (c *Config) NewLogger() *slog.Logger {
	return logger.New(c.Logging.Level, c.Logging.Format, os.Stderr)
}
