package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/claude/freecoach/internal/analytics"
)

// Source kinds.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Cache     CacheConfig     `yaml:"cache"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// SourceConfig selects where records are read from.
type SourceConfig struct {
	Kind         string        `yaml:"kind"`
	BaseURL      string        `yaml:"base_url"`
	SnapshotPath string        `yaml:"snapshot_path"`
	Timeout      time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	SizeMB int           `yaml:"size_mb"`
	TTL    time.Duration `yaml:"ttl"`
}

type AnalyticsConfig struct {
	VolumeWindowDays       int    `yaml:"volume_window_days"`
	DefaultWeeklyFrequency int    `yaml:"default_weekly_frequency"`
	MakeupPolicy           string `yaml:"makeup_policy"`
	ProrateExpected        bool   `yaml:"prorate_expected"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// LogConfig controls the process logger. File enables rotation; Stdout
// keeps writing to stdout as well when a file is set.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	Stdout     bool   `yaml:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "freecoach", User: "freecoach"},
		Source:   SourceConfig{Kind: SourcePostgres, SnapshotPath: "freecoach-snapshot.db", Timeout: 30 * time.Second},
		Cache:    CacheConfig{SizeMB: 16, TTL: 5 * time.Minute},
		Analytics: AnalyticsConfig{
			VolumeWindowDays:       analytics.DefaultVolumeWindowDays,
			DefaultWeeklyFrequency: 3,
			MakeupPolicy:           string(analytics.MakeupIgnore),
		},
		Tailscale: TailscaleConfig{Hostname: "freecoach", StateDir: "tsnet-state"},
		Log:       LogConfig{Level: "info", Format: "text", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 28},
		Refresh:   RefreshConfig{Interval: time.Minute},
	}
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. Env vars use the prefix FREECOACH_ and
// underscore-separated paths:
//
//	FREECOACH_SERVER_HOST, FREECOACH_SERVER_PORT,
//	FREECOACH_DB_HOST, FREECOACH_DB_PORT, FREECOACH_DB_NAME,
//	FREECOACH_DB_USER, FREECOACH_DB_PASSWORD, FREECOACH_DB_SSLMODE,
//	FREECOACH_SOURCE_KIND, FREECOACH_SOURCE_BASE_URL,
//	FREECOACH_SOURCE_SNAPSHOT_PATH, FREECOACH_SOURCE_TIMEOUT,
//	FREECOACH_CACHE_SIZE_MB, FREECOACH_CACHE_TTL,
//	FREECOACH_ANALYTICS_WINDOW_DAYS, FREECOACH_ANALYTICS_WEEKLY_FREQUENCY,
//	FREECOACH_ANALYTICS_MAKEUP_POLICY, FREECOACH_ANALYTICS_PRORATE,
//	FREECOACH_AUTH_API_KEY,
//	FREECOACH_TAILSCALE_ENABLED, FREECOACH_TAILSCALE_HOSTNAME, FREECOACH_TAILSCALE_STATE_DIR,
//	FREECOACH_LOG_LEVEL, FREECOACH_LOG_FORMAT, FREECOACH_LOG_FILE,
//	FREECOACH_REFRESH_INTERVAL
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// FromEnv builds a config from Default and the environment alone, for tools
// run without a config file.
func FromEnv() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("FREECOACH_SERVER_HOST", &cfg.Server.Host)
	envInt("FREECOACH_SERVER_PORT", &cfg.Server.Port)

	envString("FREECOACH_DB_HOST", &cfg.Database.Host)
	envInt("FREECOACH_DB_PORT", &cfg.Database.Port)
	envString("FREECOACH_DB_NAME", &cfg.Database.Name)
	envString("FREECOACH_DB_USER", &cfg.Database.User)
	envString("FREECOACH_DB_PASSWORD", &cfg.Database.Password)
	envString("FREECOACH_DB_SSLMODE", &cfg.Database.SSLMode)

	envString("FREECOACH_SOURCE_KIND", &cfg.Source.Kind)
	envString("FREECOACH_SOURCE_BASE_URL", &cfg.Source.BaseURL)
	envString("FREECOACH_SOURCE_SNAPSHOT_PATH", &cfg.Source.SnapshotPath)
	envDuration("FREECOACH_SOURCE_TIMEOUT", &cfg.Source.Timeout)

	envInt("FREECOACH_CACHE_SIZE_MB", &cfg.Cache.SizeMB)
	envDuration("FREECOACH_CACHE_TTL", &cfg.Cache.TTL)

	envInt("FREECOACH_ANALYTICS_WINDOW_DAYS", &cfg.Analytics.VolumeWindowDays)
	envInt("FREECOACH_ANALYTICS_WEEKLY_FREQUENCY", &cfg.Analytics.DefaultWeeklyFrequency)
	envString("FREECOACH_ANALYTICS_MAKEUP_POLICY", &cfg.Analytics.MakeupPolicy)
	envBool("FREECOACH_ANALYTICS_PRORATE", &cfg.Analytics.ProrateExpected)

	envString("FREECOACH_AUTH_API_KEY", &cfg.Auth.APIKey)

	envBool("FREECOACH_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("FREECOACH_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envString("FREECOACH_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)

	envString("FREECOACH_LOG_LEVEL", &cfg.Log.Level)
	envString("FREECOACH_LOG_FORMAT", &cfg.Log.Format)
	envString("FREECOACH_LOG_FILE", &cfg.Log.File)

	envDuration("FREECOACH_REFRESH_INTERVAL", &cfg.Refresh.Interval)
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case SourcePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http source")
		}
	case SourceSQLite:
		if c.Source.SnapshotPath == "" {
			return fmt.Errorf("source.snapshot_path is required for the sqlite source")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of postgres, http, sqlite", c.Source.Kind)
	}
	if c.Analytics.VolumeWindowDays <= 0 {
		return fmt.Errorf("analytics.volume_window_days must be positive")
	}
	if c.Analytics.DefaultWeeklyFrequency < 0 {
		return fmt.Errorf("analytics.default_weekly_frequency must not be negative")
	}
	if _, err := analytics.ParseMakeupPolicy(c.Analytics.MakeupPolicy); err != nil {
		return fmt.Errorf("analytics.makeup_policy: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh.interval must not be negative")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return nil
}

// MakeupPolicy returns the parsed policy. validate has already rejected
// unknown values.
func (c *Config) MakeupPolicy() analytics.MakeupPolicy {
	p, _ := analytics.ParseMakeupPolicy(c.Analytics.MakeupPolicy)
	return p
}
