// Package config loads reqevo settings from defaults, a config file,
// a .env file and REQEVO_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration. Field tags use mapstructure for viper.
type Config struct {
	OutputDir  string           `mapstructure:"output_dir"`
	CacheDir   string           `mapstructure:"cache_dir"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Gate       GateConfig       `mapstructure:"gate"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ClassifierConfig selects and tunes the change classifier.
type ClassifierConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GateConfig configures the review callback server.
type GateConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	OpenBrowser bool   `mapstructure:"open_browser"`
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	Compress   bool   `mapstructure:"compress"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Classifier providers.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
)

// Sentinel errors for configuration validation.
var (
	ErrInvalidProvider    = errors.New("classifier.provider must be auto, openai or heuristic")
	ErrMissingModel       = errors.New("classifier.model is required for the openai provider")
	ErrInvalidTemperature = errors.New("classifier.temperature must be between 0 and 2")
	ErrInvalidAttempts    = errors.New("classifier.max_attempts must be positive")
	ErrInvalidPort        = errors.New("gate.port must be between 0 and 65535")
	ErrInvalidBackend     = errors.New("store.backend must be file, sqlite, redis or none")
	ErrMissingStorePath   = errors.New("store backend needs its path or url")
	ErrInvalidLogLevel    = errors.New("logging.level must be debug, info, warn or error")
	ErrInvalidLogFormat   = errors.New("logging.format must be text or json")
)

const maxTemperature = 2.0

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if c.Gate.Port < 0 || c.Gate.Port > 65535 {
		return ErrInvalidPort
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if _, ok := parseLevel(c.Logging.Level); !ok {
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Provider {
	case ProviderAuto, ProviderOpenAI, ProviderHeuristic:
	default:
		return ErrInvalidProvider
	}
	if c.Classifier.Provider == ProviderOpenAI && c.Classifier.Model == "" {
		return ErrMissingModel
	}
	if c.Classifier.Temperature < 0 || c.Classifier.Temperature > maxTemperature {
		return ErrInvalidTemperature
	}
	if c.Classifier.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("%w: store.dir", ErrMissingStorePath)
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: store.sqlite_path", ErrMissingStorePath)
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("%w: store.redis_url", ErrMissingStorePath)
		}
	case "none":
	default:
		return ErrInvalidBackend
	}
	return nil
}

// UseLLM reports whether the chat completion classifier should be used.
// Auto picks it only when an API key is present.
func (c *Config) UseLLM() bool {
	switch c.Classifier.Provider {
	case ProviderOpenAI:
		return true
	case ProviderHeuristic:
		return false
	default:
		return c.Classifier.APIKey != ""
	}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
