package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. HANGEUL_API_BASE_URL.
const EnvPrefix = "HANGEUL"

// Config holds all client configuration.
type Config struct {
	API   APIConfig   `mapstructure:"api"`
	Retry RetryConfig `mapstructure:"retry"`
	Media MediaConfig `mapstructure:"media"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// APIConfig points the client at the content backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// ClientVersion is sent as X-Client-Version. Set from the build version.
	ClientVersion string `mapstructure:"client_version"`
}

// RetryConfig configures retry behavior for idempotent API reads.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialWait time.Duration `mapstructure:"initial_wait" validate:"gte=0"`
	MaxWait     time.Duration `mapstructure:"max_wait" validate:"gtefield=InitialWait"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// MediaConfig configures the prefetch window and the download pool.
type MediaConfig struct {
	// Dir is the parent of per-session cache directories. Empty = os.TempDir().
	Dir string `mapstructure:"dir"`

	Back    int `mapstructure:"back" validate:"min=0,max=10"`
	Forward int `mapstructure:"forward" validate:"min=0,max=10"`

	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"min=1,max=32"`
	MaxBytes      int64         `mapstructure:"max_bytes" validate:"gt=0"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
}

// StoreConfig locates the lifecycle journal.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	File   string `mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8089/api",
			Timeout: 15 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Media: MediaConfig{
			Back:          0,
			Forward:       1,
			MaxConcurrent: 4,
			MaxBytes:      25 << 20,
			FetchTimeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load layers defaults, an optional YAML file, an optional .env file and
// HANGEUL_* environment variables, then validates the result. An empty path
// looks for config.yaml under the user config dir.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if dir, err := DefaultConfigDir(); err == nil {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.client_version", d.API.ClientVersion)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("media.dir", d.Media.Dir)
	v.SetDefault("media.back", d.Media.Back)
	v.SetDefault("media.forward", d.Media.Forward)
	v.SetDefault("media.max_concurrent", d.Media.MaxConcurrent)
	v.SetDefault("media.max_bytes", d.Media.MaxBytes)
	v.SetDefault("media.fetch_timeout", d.Media.FetchTimeout)

	v.SetDefault("store.db_path", d.Store.DBPath)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding variables
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/hangeul, falling back to ~/.config.
func DefaultConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "hangeul"), nil
}
