package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: DOCAPPT_LISTEN,
// DOCAPPT_STORE_BACKEND, ...
const EnvPrefix = "DOCAPPT"

const defaultScheduleURL = "https://raw.githubusercontent.com/suyogshiftcare/jsontest/main/available.json"

// StoreConfig selects where booked appointments are persisted.
type StoreConfig struct {
	// Backend is one of "file", "memory", "redis".
	Backend string `yaml:"backend" mapstructure:"backend" json:"backend"`
	// Dir is the directory of the file backend.
	Dir string `yaml:"dir" mapstructure:"dir" json:"dir"`

	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix" json:"redis_prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" json:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen"`

	// Env is "development" or "production"; production switches logs to JSON.
	Env string `yaml:"env" mapstructure:"env" json:"env"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// ScheduleURL is the JSON feed of weekly doctor schedules.
	ScheduleURL string `yaml:"schedule_url" mapstructure:"schedule_url" json:"schedule_url"`

	// FetchTimeoutSeconds bounds a single feed request. 0 disables the bound.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" mapstructure:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for re-fetching the feed while serving. Empty disables refreshing.
	RefreshCron string `yaml:"refresh" mapstructure:"refresh" json:"refresh"`

	// HorizonDays is the number of days offered for booking.
	HorizonDays int `yaml:"horizon_days" mapstructure:"horizon_days" json:"horizon_days"`

	Store   StoreConfig   `yaml:"store" mapstructure:"store" json:"store"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics" json:"metrics"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		Env:                 "development",
		LogLevel:            "info",
		ScheduleURL:         defaultScheduleURL,
		FetchTimeoutSeconds: 15,
		RefreshCron:         "*/15 * * * *",
		HorizonDays:         14,
		Store: StoreConfig{
			Backend:     "file",
			Dir:         "./var/store",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "docappt:",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.Env {
	case "development", "production":
	default:
		c.Env = def.Env
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ScheduleURL == "" {
		c.ScheduleURL = def.ScheduleURL
	}
	if c.FetchTimeoutSeconds < 0 {
		c.FetchTimeoutSeconds = 0
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	switch c.Store.Backend {
	case "file", "memory", "redis":
	default:
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.Dir == "" {
		c.Store.Dir = def.Store.Dir
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = def.Store.RedisAddr
	}
	if c.Metrics.Path == "" || !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = def.Metrics.Path
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there (0600)
//     and used.
//   - Values from the file are overridden by DOCAPPT_* environment variables
//     (nested keys joined with "_", e.g. DOCAPPT_STORE_BACKEND).
//   - The result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, err
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

// newViper registers every key with its default so that environment
// overrides apply even to keys missing from the file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("env", def.Env)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("schedule_url", def.ScheduleURL)
	v.SetDefault("fetch_timeout_seconds", def.FetchTimeoutSeconds)
	v.SetDefault("refresh", def.RefreshCron)
	v.SetDefault("horizon_days", def.HorizonDays)
	v.SetDefault("store.backend", def.Store.Backend)
	v.SetDefault("store.dir", def.Store.Dir)
	v.SetDefault("store.redis_addr", def.Store.RedisAddr)
	v.SetDefault("store.redis_password", def.Store.RedisPassword)
	v.SetDefault("store.redis_db", def.Store.RedisDB)
	v.SetDefault("store.redis_prefix", def.Store.RedisPrefix)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.path", def.Metrics.Path)
	return v
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".docappt-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
