// Package config loads process configuration (YAML + env overrides, in the
// teacher's style) and implements the campaign-config channel-age defaults
// and deep-merge rules of spec §6/§9.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds process-wide configuration: database/redis connectivity,
// worker tuning, and the HTTP control-plane server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Runner     RunnerConfig     `yaml:"runner"`
	Emergency  EmergencyConfig  `yaml:"emergency"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig configures the cmd/campaignctl HTTP control plane.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig configures the Postgres connection pool, mirroring the
// teacher's cmd/worker/main.go pool tuning.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	ConnMaxLifeMin int    `yaml:"conn_max_life_min"`
	ConnMaxIdleMin int    `yaml:"conn_max_idle_min"`
}

// ConnMaxLifetime returns ConnMaxLifeMin as a time.Duration.
func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifeMin) * time.Minute
}

// ConnMaxIdleTime returns ConnMaxIdleMin as a time.Duration.
func (d DatabaseConfig) ConnMaxIdleTime() time.Duration {
	return time.Duration(d.ConnMaxIdleMin) * time.Minute
}

// RedisConfig configures the optional shared Redis used by the L2
// validation cache tier and the distributed campaign-start lock.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// RunnerConfig tunes CampaignRunner defaults not carried in per-campaign
// config: a default worker concurrency and the recovery-sweep interval and
// stale-claim age. DefaultConcurrency is loaded and defaulted only; no
// runner reads it, and every running campaign is driven by exactly one
// worker goroutine.
type RunnerConfig struct {
	DefaultConcurrency  int `yaml:"default_concurrency"`
	RecoveryIntervalSec int `yaml:"recovery_interval_sec"`
	StaleClaimAgeSec    int `yaml:"stale_claim_age_sec"`
}

// RecoveryInterval returns RecoveryIntervalSec as a time.Duration.
func (r RunnerConfig) RecoveryInterval() time.Duration {
	return time.Duration(r.RecoveryIntervalSec) * time.Second
}

// StaleClaimAge returns StaleClaimAgeSec as a time.Duration.
func (r RunnerConfig) StaleClaimAge() time.Duration {
	return time.Duration(r.StaleClaimAgeSec) * time.Second
}

// EmergencyConfig tunes EmergencyMonitor's sweep interval and thresholds.
type EmergencyConfig struct {
	SweepIntervalSec  int     `yaml:"sweep_interval_sec"`
	PauseThresholdPct float64 `yaml:"pause_threshold_pct"`
	WarnThresholdPct  float64 `yaml:"warn_threshold_pct"`
	MinAttempts       int     `yaml:"min_attempts"`
}

// SweepInterval returns SweepIntervalSec as a time.Duration.
func (e EmergencyConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalSec) * time.Second
}

// ValidationConfig tunes the PhoneValidationCache TTLs and background-queue
// pacing.
type ValidationConfig struct {
	L1TTLMin      int `yaml:"l1_ttl_min"`
	L2TTLMin      int `yaml:"l2_ttl_min"`
	L3TTLMin      int `yaml:"l3_ttl_min"`
	WarmWindowMin int `yaml:"warm_window_min"`
}

func (v ValidationConfig) L1TTL() time.Duration { return time.Duration(v.L1TTLMin) * time.Minute }
func (v ValidationConfig) L2TTL() time.Duration { return time.Duration(v.L2TTLMin) * time.Minute }
func (v ValidationConfig) L3TTL() time.Duration { return time.Duration(v.L3TTLMin) * time.Minute }

// WarmWindow is how long ProgressiveWarm spreads a new campaign's
// recipient validation over, before the campaign's own worker loop starts.
func (v ValidationConfig) WarmWindow() time.Duration { return time.Duration(v.WarmWindowMin) * time.Minute }

// Load reads and parses the YAML config file at path, filling in defaults
// for any zero-valued field, following the teacher's Load/default-fill
// pattern in internal/config/config.go.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSec == 0 {
		cfg.Server.ReadTimeoutSec = 15
	}
	if cfg.Server.WriteTimeoutSec == 0 {
		cfg.Server.WriteTimeoutSec = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifeMin == 0 {
		cfg.Database.ConnMaxLifeMin = 5
	}
	if cfg.Database.ConnMaxIdleMin == 0 {
		cfg.Database.ConnMaxIdleMin = 1
	}
	if cfg.Runner.DefaultConcurrency == 0 {
		cfg.Runner.DefaultConcurrency = 1
	}
	if cfg.Runner.RecoveryIntervalSec == 0 {
		cfg.Runner.RecoveryIntervalSec = 120
	}
	if cfg.Runner.StaleClaimAgeSec == 0 {
		cfg.Runner.StaleClaimAgeSec = 300
	}
	if cfg.Emergency.SweepIntervalSec == 0 {
		cfg.Emergency.SweepIntervalSec = 60
	}
	if cfg.Emergency.PauseThresholdPct == 0 {
		cfg.Emergency.PauseThresholdPct = 5.0
	}
	if cfg.Emergency.WarnThresholdPct == 0 {
		cfg.Emergency.WarnThresholdPct = 3.0
	}
	if cfg.Emergency.MinAttempts == 0 {
		cfg.Emergency.MinAttempts = 20
	}
	if cfg.Validation.L1TTLMin == 0 {
		cfg.Validation.L1TTLMin = 60
	}
	if cfg.Validation.L2TTLMin == 0 {
		cfg.Validation.L2TTLMin = 24 * 60
	}
	if cfg.Validation.L3TTLMin == 0 {
		cfg.Validation.L3TTLMin = 7 * 24 * 60
	}
	if cfg.Validation.WarmWindowMin == 0 {
		cfg.Validation.WarmWindowMin = 15
	}
}

// LoadFromEnv loads path (returning Load's error if it cannot be read),
// applies a local .env via godotenv
// (ignored if missing, as in the teacher), then overrides the handful of
// fields operators most commonly set via environment in container
// deployments.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var p int
		if _, err := fmt.Sscan(v, &p); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
