package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Logging  LoggingConfig  `mapstructure:"logging"  validate:"required"`
	Miner    MinerConfig    `mapstructure:"miner"    validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
// Driver selects the backend: "pgx" for a PostgreSQL server or "sqlite3"
// for the embedded engine. URL is the driver-specific DSN.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=pgx sqlite3"`
	URL    string `mapstructure:"url"    validate:"required"`
}

// LoggingConfig contains the structured-logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// MinerConfig contains the ledger subsystem settings: the device identity
// this node reports under, the stale-task reaper tuning, and the retry
// policy applied to persistence calls.
type MinerConfig struct {
	DeviceID           string        `mapstructure:"device_id"            validate:"required"`
	Registered         bool          `mapstructure:"registered"`
	StaleTaskThreshold time.Duration `mapstructure:"stale_task_threshold" validate:"required"`
	ReapInterval       time.Duration `mapstructure:"reap_interval"        validate:"required"`
	RetryMaxAttempts   int           `mapstructure:"retry_max_attempts"   validate:"gte=0"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"     validate:"gt=0"`
}
