// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type CheckinConfig struct {
	GeofenceRadiusMiles   float64 `yaml:"geofence_radius_miles"`
	AccuracyWarnMeters    float64 `yaml:"accuracy_warn_meters"`
	BlockDenyWindowMins   int     `yaml:"block_deny_window_minutes"`
	BlockWarnWindowMins   int     `yaml:"block_warn_window_minutes"`
	LocationTimeoutSecs   int     `yaml:"location_timeout_seconds"`
	AvailabilityCacheMins int     `yaml:"availability_cache_minutes"`
}

type SchedulerConfig struct {
	// Cron expressions for the background jobs.
	SessionExpirySchedule string `yaml:"session_expiry_schedule"`
	BlockMaterializeCron  string `yaml:"block_materialize_schedule"`
	// How far ahead recurring blocks are materialized.
	BlockHorizonHours int `yaml:"block_horizon_hours"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Checkin   CheckinConfig   `yaml:"checkin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Checkin.BlockDenyWindowMins == 0 {
		c.Checkin.BlockDenyWindowMins = 30
	}
	if c.Checkin.BlockWarnWindowMins == 0 {
		c.Checkin.BlockWarnWindowMins = 120
	}
	if c.Checkin.LocationTimeoutSecs == 0 {
		c.Checkin.LocationTimeoutSecs = 30
	}
	if c.Checkin.AvailabilityCacheMins == 0 {
		c.Checkin.AvailabilityCacheMins = 5
	}
	if c.Scheduler.SessionExpirySchedule == "" {
		c.Scheduler.SessionExpirySchedule = "*/5 * * * *"
	}
	if c.Scheduler.BlockMaterializeCron == "" {
		c.Scheduler.BlockMaterializeCron = "0 * * * *"
	}
	if c.Scheduler.BlockHorizonHours == 0 {
		c.Scheduler.BlockHorizonHours = 48
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Checkin.GeofenceRadiusMiles < 0 {
		return fmt.Errorf("geofence radius must not be negative")
	}
	return nil
}

// CacheTTL returns the availability cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Checkin.AvailabilityCacheMins) * time.Minute
}
