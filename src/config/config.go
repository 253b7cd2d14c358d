// Package config loads cisync configuration from a YAML file, CISYNC_* environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"cisync/src/contracts"
	"cisync/src/provider"
)

// EnvPrefix prefixes every environment variable, e.g. CISYNC_GITHUB_TOKEN.
const EnvPrefix = "CISYNC"

// Config holds the application configuration.
type Config struct {
	GitHub    GitHubConfig    `mapstructure:"github"`
	Buildkite BuildkiteConfig `mapstructure:"buildkite"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redpanda  RedpandaConfig  `mapstructure:"redpanda"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Builds    []BuildConfig   `mapstructure:"builds" validate:"dive"`
}

type GitHubConfig struct {
	Token string `mapstructure:"token" sensitive:"true"`
	// BaseURL targets GitHub Enterprise; empty means api.github.com.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type BuildkiteConfig struct {
	Token string `mapstructure:"token" sensitive:"true"`
}

// DatabaseConfig selects the store. An empty DSN keeps everything in memory.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" sensitive:"true"`
}

// RedpandaConfig selects the event broker. No brokers means in-process delivery.
type RedpandaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"dive,hostname_port"`
}

type SyncConfig struct {
	InterPageDelay time.Duration `mapstructure:"inter_page_delay" validate:"gte=0"`
	Lookback       time.Duration `mapstructure:"lookback" validate:"gte=0"`
	SteadyLimit    int           `mapstructure:"steady_limit" validate:"gte=1,lte=1000"`
	HydrationLimit int           `mapstructure:"hydration_limit" validate:"gte=1,lte=500"`
}

type CacheConfig struct {
	Capacity int `mapstructure:"capacity" validate:"gte=1"`
}

type SchedulerConfig struct {
	Spec        string `mapstructure:"spec" validate:"required"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1,lte=64"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	// File, when set, receives a rotated copy of the log.
	File string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// BuildConfig declares a tracked build in the config file.
type BuildConfig struct {
	ID                     string               `mapstructure:"id" validate:"required"`
	TenantID               string               `mapstructure:"tenant_id" validate:"required"`
	Name                   string               `mapstructure:"name"`
	Provider               string               `mapstructure:"provider" validate:"oneof=github buildkite"`
	Repository             string               `mapstructure:"repository" validate:"required"`
	Selectors              []contracts.Selector `mapstructure:"selectors" validate:"required,min=1,dive"`
	CacheExpirationMinutes int                  `mapstructure:"cache_expiration_minutes" validate:"gte=0"`
}

// Build converts the declaration into a contracts.Build.
// Repository is "owner/repo" (or a GitHub URL); for Buildkite, "organization/pipeline".
func (b BuildConfig) Build() (*contracts.Build, error) {
	owner, repo, err := provider.ParseRepository(b.Repository)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", b.ID, err)
	}
	name := b.Name
	if name == "" {
		name = owner + "/" + repo
	}
	return &contracts.Build{
		ID:                     b.ID,
		TenantID:               b.TenantID,
		Name:                   name,
		Provider:               b.Provider,
		Owner:                  owner,
		Repo:                   repo,
		Selectors:              b.Selectors,
		CacheExpirationMinutes: b.CacheExpirationMinutes,
	}, nil
}

// TokenFor returns the credential of the named provider.
func (c *Config) TokenFor(provider string) string {
	switch provider {
	case "github":
		return c.GitHub.Token
	case "buildkite":
		return c.Buildkite.Token
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "")
	v.SetDefault("buildkite.token", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redpanda.brokers", []string{})
	v.SetDefault("sync.inter_page_delay", "500ms")
	v.SetDefault("sync.lookback", "168h")
	v.SetDefault("sync.steady_limit", 100)
	v.SetDefault("sync.hydration_limit", 50)
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("scheduler.spec", "@every 5m")
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", ":9090")
}

// Load reads configuration. path may be empty, in which case cisync.yaml is
// looked up in the working directory and $HOME/.config/cisync, and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("cisync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cisync")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
