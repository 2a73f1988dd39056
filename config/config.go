// Package config loads joblane process configuration.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fieldmark/joblane/errors"
)

// Config holds the settings consumed by the job lifecycle core.
type Config struct {
	// InstanceID identifies this worker instance. A job row claimed by one
	// instance must not be initialized by another.
	InstanceID string `mapstructure:"instance_id"`

	// FailedRetryMinutes is the fixed backoff applied before a failed job's
	// retry successor becomes eligible to run.
	FailedRetryMinutes int `mapstructure:"failed_retry_minutes"`

	// DatabasePath is the SQLite database file backing the job store.
	DatabasePath string `mapstructure:"database_path"`

	// JSONLogs switches the logger to JSON output.
	JSONLogs bool `mapstructure:"json_logs"`
}

// RetryBackoff returns the failed-retry backoff as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.FailedRetryMinutes) * time.Minute
}

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the joblane configuration using Viper.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadWithViper loads configuration using a provided Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// SetDefaults applies default values to a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("instance_id", "joblane0")
	v.SetDefault("failed_retry_minutes", 30)
	v.SetDefault("database_path", "joblane.db")
	v.SetDefault("json_logs", false)
}

// initViper initializes Viper with configuration sources and defaults.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("JOBLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("joblane")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.joblane")
	// Config file is optional; env vars and defaults suffice without one.
	_ = v.ReadInConfig()

	viperInstance = v
	return v
}
