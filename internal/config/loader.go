package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName      = ".reqevo"
	configType      = "yaml"
	envPrefix       = "REQEVO"
	envKeySeparator = "_"
)

// Defaults.
const (
	DefaultOutputDir   = "."
	DefaultCacheDir    = "versions"
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.0
	DefaultMaxAttempts = 3
	DefaultGateHost    = "127.0.0.1"
	DefaultStoreDir    = ".reqevo/runs"
)

// Load reads configuration from defaults, the config file, .env and the
// environment. If configPath is empty the file is searched as .reqevo.yaml in
// the working directory and $HOME. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	// OPENAI_API_KEY is honoured unprefixed, the way most tooling reads it.
	if err := v.BindEnv("classifier.api_key", envPrefix+"_CLASSIFIER_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("classifier.base_url", envPrefix+"_CLASSIFIER_BASE_URL", "OPENAI_BASE_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("cache_dir", DefaultCacheDir)

	v.SetDefault("classifier.provider", ProviderAuto)
	v.SetDefault("classifier.model", DefaultModel)
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.temperature", DefaultTemperature)
	v.SetDefault("classifier.max_attempts", DefaultMaxAttempts)
	v.SetDefault("classifier.backoff_base", "1s")
	v.SetDefault("classifier.timeout", "120s")

	v.SetDefault("gate.host", DefaultGateHost)
	v.SetDefault("gate.port", 0)
	v.SetDefault("gate.open_browser", true)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", DefaultStoreDir)
	v.SetDefault("store.compress", false)
	v.SetDefault("store.sqlite_path", ".reqevo/runs.db")
	v.SetDefault("store.redis_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
