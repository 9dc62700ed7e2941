package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables (prefix MINER_, nested keys joined
// with underscores, e.g. MINER_DATABASE_URL) take precedence over values
// from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("miner-agent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/miner-agent")

	v.SetEnvPrefix("MINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every tunable so a minimal
// deployment only has to provide the database URL and device id.
func setDefaults(v *viper.Viper) {
	// Keys without a real default still need to be known to viper for
	// environment-only values to unmarshal; validation rejects the
	// empty placeholders.
	v.SetDefault("database.url", "")
	v.SetDefault("miner.device_id", "")

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("logging.level", "info")
	v.SetDefault("miner.registered", false)
	v.SetDefault("miner.stale_task_threshold", 5*time.Minute)
	v.SetDefault("miner.reap_interval", time.Minute)
	v.SetDefault("miner.retry_max_attempts", 3)
	v.SetDefault("miner.retry_base_delay", 100*time.Millisecond)
}
