package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads process-wide environment variables, so these tests use
// t.Setenv and cannot run in parallel.

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINER_DATABASE_URL", "postgres://localhost:5432/miner")
	t.Setenv("MINER_MINER_DEVICE_ID", "device-test")
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/miner", cfg.Database.URL)
	assert.Equal(t, "device-test", cfg.Miner.DeviceID)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Miner.Registered)
	assert.Equal(t, 5*time.Minute, cfg.Miner.StaleTaskThreshold)
	assert.Equal(t, time.Minute, cfg.Miner.ReapInterval)
	assert.Equal(t, 3, cfg.Miner.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Miner.RetryBaseDelay)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINER_DATABASE_DRIVER", "sqlite3")
	t.Setenv("MINER_MINER_REGISTERED", "true")
	t.Setenv("MINER_MINER_STALE_TASK_THRESHOLD", "10m")
	t.Setenv("MINER_MINER_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.True(t, cfg.Miner.Registered)
	assert.Equal(t, 10*time.Minute, cfg.Miner.StaleTaskThreshold)
	assert.Equal(t, 5, cfg.Miner.RetryMaxAttempts)
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("MINER_DATABASE_URL", "")
	t.Setenv("MINER_MINER_DEVICE_ID", "device-test")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMissingDeviceID(t *testing.T) {
	t.Setenv("MINER_DATABASE_URL", "postgres://localhost:5432/miner")
	t.Setenv("MINER_MINER_DEVICE_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINER_DATABASE_DRIVER", "oracle")

	_, err := Load()
	assert.Error(t, err)
}
