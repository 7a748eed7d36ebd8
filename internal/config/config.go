// Package config loads runtime settings from defaults, an optional YAML file
// and TECHPULSE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "TECHPULSE_CONFIG"
	defaultTimezone = "UTC"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every runtime setting.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Timezone  string          `yaml:"timezone"` // for feed timestamps without an offset

	location *time.Location
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"` // file path for sqlite, connection string for postgres
}

// FetchConfig tunes the feed transport and the worker pool.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"userAgent"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
	Workers      int           `yaml:"workers"`
	HostDelay    time.Duration `yaml:"hostDelay"`
}

// SchedulerConfig drives the schedule command.
type SchedulerConfig struct {
	Cron      string        `yaml:"cron"`
	RedisAddr string        `yaml:"redisAddr"` // empty disables the cross-replica lock
	LockTTL   time.Duration `yaml:"lockTTL"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "techpulse.db"},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			Retries:      2,
			RetryBackoff: time.Second,
			Workers:      10,
			HostDelay:    500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{Cron: "*/15 * * * *", LockTTL: 10 * time.Minute},
		Server:    ServerConfig{Addr: ":8080"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Timezone:  defaultTimezone,
		location:  time.UTC,
	}
}

// Load builds the configuration. An empty path falls back to $TECHPULSE_CONFIG;
// when both are empty no file is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location returns the resolved time zone.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) applyEnvOverrides() error {
	c.Database.Driver = getEnv("TECHPULSE_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("TECHPULSE_DB_DSN", c.Database.DSN)
	c.Timezone = getEnv("TECHPULSE_TIMEZONE", c.Timezone)
	c.Fetch.UserAgent = getEnv("TECHPULSE_USER_AGENT", c.Fetch.UserAgent)
	c.Scheduler.Cron = getEnv("TECHPULSE_CRON", c.Scheduler.Cron)
	c.Scheduler.RedisAddr = getEnv("TECHPULSE_REDIS_ADDR", c.Scheduler.RedisAddr)
	c.Server.Addr = getEnv("TECHPULSE_ADDR", c.Server.Addr)
	c.Log.Level = getEnv("TECHPULSE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TECHPULSE_LOG_FORMAT", c.Log.Format)

	var err error
	if c.Fetch.Timeout, err = envDuration("TECHPULSE_FETCH_TIMEOUT", c.Fetch.Timeout); err != nil {
		return err
	}
	if c.Fetch.RetryBackoff, err = envDuration("TECHPULSE_RETRY_BACKOFF", c.Fetch.RetryBackoff); err != nil {
		return err
	}
	if c.Fetch.HostDelay, err = envDuration("TECHPULSE_HOST_DELAY", c.Fetch.HostDelay); err != nil {
		return err
	}
	if c.Fetch.Retries, err = envInt("TECHPULSE_FETCH_RETRIES", c.Fetch.Retries); err != nil {
		return err
	}
	if c.Fetch.Workers, err = envInt("TECHPULSE_WORKERS", c.Fetch.Workers); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn is empty")
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Fetch.Workers)
	}
	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: timezone %q: %w", tz, err)
	}
	c.location = loc
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
