package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  read_timeout_sec: 20

database:
  url: "postgres://test/db"
  max_open_conns: 25

runner:
  default_concurrency: 2
  recovery_interval_sec: 60

emergency:
  sweep_interval_sec: 30
  pause_threshold_pct: 4.0
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.ReadTimeoutSec)
	assert.Equal(t, "postgres://test/db", cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2, cfg.Runner.DefaultConcurrency)
	assert.Equal(t, 60, cfg.Runner.RecoveryIntervalSec)
	assert.Equal(t, 30, cfg.Emergency.SweepIntervalSec)
	assert.Equal(t, 4.0, cfg.Emergency.PauseThresholdPct)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("database:\n  url: \"x\"\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 1, cfg.Runner.DefaultConcurrency)
	assert.Equal(t, 120, cfg.Runner.RecoveryIntervalSec)
	assert.Equal(t, 60, cfg.Emergency.SweepIntervalSec)
	assert.Equal(t, 5.0, cfg.Emergency.PauseThresholdPct)
	assert.Equal(t, 3.0, cfg.Emergency.WarnThresholdPct)
	assert.Equal(t, 60, cfg.Validation.L1TTLMin)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("database:\n  url: \"file-url\"\n"), 0644)
	require.NoError(t, err)

	os.Setenv("DATABASE_URL", "env-url")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-url", cfg.Database.URL)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestConnMaxLifetime(t *testing.T) {
	cfg := DatabaseConfig{ConnMaxLifeMin: 5}
	assert.Equal(t, 5*60, int(cfg.ConnMaxLifetime().Seconds()))
}

func TestSweepInterval(t *testing.T) {
	cfg := EmergencyConfig{SweepIntervalSec: 60}
	assert.Equal(t, 60, int(cfg.SweepInterval().Seconds()))
}
