package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no inherited settings.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "REQEVO_CLASSIFIER_API_KEY",
		"REQEVO_CLASSIFIER_PROVIDER", "REQEVO_GATE_PORT", "REQEVO_LOGGING_LEVEL", "REQEVO_STORE_BACKEND"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, ProviderAuto, cfg.Classifier.Provider)
	assert.Equal(t, DefaultModel, cfg.Classifier.Model)
	assert.Equal(t, 3, cfg.Classifier.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Classifier.BackoffBase)
	assert.Equal(t, "127.0.0.1", cfg.Gate.Host)
	assert.Equal(t, 0, cfg.Gate.Port)
	assert.True(t, cfg.Gate.OpenBrowser)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.False(t, cfg.UseLLM())
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	yaml := `
output_dir: out
classifier:
  provider: heuristic
  temperature: 0.3
gate:
  port: 8765
  open_browser: false
store:
  backend: sqlite
  sqlite_path: runs.db
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reqevo.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, ProviderHeuristic, cfg.Classifier.Provider)
	assert.InDelta(t, 0.3, cfg.Classifier.Temperature, 1e-9)
	assert.Equal(t, 8765, cfg.Gate.Port)
	assert.False(t, cfg.Gate.OpenBrowser)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "runs.db", cfg.Store.SQLitePath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_dir: cache\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cache", cfg.CacheDir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("REQEVO_GATE_PORT", "9000")
	t.Setenv("REQEVO_CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Gate.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Classifier.Provider)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
	assert.True(t, cfg.UseLLM())
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", cfg.Classifier.APIKey)
	assert.True(t, cfg.UseLLM(), "auto uses the llm when a key is present")
}

func TestLoadInvalid(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reqevo.yaml"), []byte("gate:\n  port: 70000\n"), 0o644))

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func validConfig() Config {
	return Config{
		Classifier: ClassifierConfig{Provider: ProviderAuto, Model: DefaultModel, MaxAttempts: 1},
		Store:      StoreConfig{Backend: "file", Dir: "runs"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"provider", func(c *Config) { c.Classifier.Provider = "claude" }, ErrInvalidProvider},
		{"openai without model", func(c *Config) { c.Classifier.Provider = ProviderOpenAI; c.Classifier.Model = "" }, ErrMissingModel},
		{"temperature", func(c *Config) { c.Classifier.Temperature = 3 }, ErrInvalidTemperature},
		{"attempts", func(c *Config) { c.Classifier.MaxAttempts = 0 }, ErrInvalidAttempts},
		{"port", func(c *Config) { c.Gate.Port = -1 }, ErrInvalidPort},
		{"backend", func(c *Config) { c.Store.Backend = "s3" }, ErrInvalidBackend},
		{"redis without url", func(c *Config) { c.Store.Backend = "redis" }, ErrMissingStorePath},
		{"none backend", func(c *Config) { c.Store.Backend = "none"; c.Store.Dir = "" }, nil},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
