package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/unklstewy/vatsim-feeds/pkg/geo"
	"github.com/unklstewy/vatsim-feeds/pkg/logger"
	"github.com/unklstewy/vatsim-feeds/pkg/vatsim"
)

// Config represents the complete application configuration.
// It can be loaded from a JSON, TOML or YAML file.
type Config struct {
	Feeds     FeedsConfig     `json:"feeds" toml:"feeds" yaml:"feeds"`
	Database  DatabaseConfig  `json:"database" toml:"database" yaml:"database"`
	Logging   LoggingConfig   `json:"logging" toml:"logging" yaml:"logging"`
	Collector CollectorConfig `json:"collector" toml:"collector" yaml:"collector"`
	Web       WebConfig       `json:"web" toml:"web" yaml:"web"`
	Radar     RadarConfig     `json:"radar" toml:"radar" yaml:"radar"`
}

// FeedsConfig contains VATSIM feed client settings.
type FeedsConfig struct {
	// StatusURL is the discovery document (default: https://status.vatsim.net/status.json)
	StatusURL string `json:"status_url" toml:"status_url" yaml:"status_url"`

	// HistoryBaseURL is the REST API root (default: https://api.vatsim.net/api)
	HistoryBaseURL string `json:"history_base_url" toml:"history_base_url" yaml:"history_base_url"`

	// StatsBaseURL is the public stats page root
	StatsBaseURL string `json:"stats_base_url" toml:"stats_base_url" yaml:"stats_base_url"`

	// UserAgent is sent with every request
	UserAgent string `json:"user_agent" toml:"user_agent" yaml:"user_agent"`

	// TimeoutSeconds bounds each HTTP request
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string `json:"host" toml:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" toml:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" toml:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" toml:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" toml:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" toml:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" toml:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level      string `json:"level" toml:"level" yaml:"level"`
	Format     string `json:"format" toml:"format" yaml:"format"`
	File       string `json:"file" toml:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" toml:"max_backups" yaml:"max_backups"`
}

// CollectorConfig controls the snapshot collector.
type CollectorConfig struct {
	// PollIntervalSeconds is the time between snapshot fetches.
	// The v3 feed refreshes every 15 seconds.
	PollIntervalSeconds int `json:"poll_interval_seconds" toml:"poll_interval_seconds" yaml:"poll_interval_seconds"`

	// ReresolveAfterFailures rebuilds the live client (new mirror choice)
	// after this many consecutive failed cycles. 0 disables.
	ReresolveAfterFailures int `json:"reresolve_after_failures" toml:"reresolve_after_failures" yaml:"reresolve_after_failures"`

	// RetentionHours is how long position and snapshot history is kept
	RetentionHours int `json:"retention_hours" toml:"retention_hours" yaml:"retention_hours"`

	// CleanupIntervalMinutes is how often old data is pruned
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes" toml:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`

	// StatsIntervalMinutes is how often database stats are logged
	StatsIntervalMinutes int `json:"stats_interval_minutes" toml:"stats_interval_minutes" yaml:"stats_interval_minutes"`

	// ReferenceAirports limits nearest-airport matching to these identifiers.
	// Empty means every airport in the bundled table.
	ReferenceAirports []string `json:"reference_airports" toml:"reference_airports" yaml:"reference_airports"`
}

// WebConfig contains HTTP API server configuration.
type WebConfig struct {
	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" toml:"host" yaml:"host"`

	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" toml:"port" yaml:"port"`

	// AllowedOrigins is the CORS origin list
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins"`
}

// RadarConfig controls the radar TUI.
type RadarConfig struct {
	// Airport is the identifier the scope is centred on
	Airport string `json:"airport" toml:"airport" yaml:"airport"`

	// RadiusMiles is the initial scope radius
	RadiusMiles float64 `json:"radius_miles" toml:"radius_miles" yaml:"radius_miles"`

	// RefreshSeconds is the time between snapshot fetches
	RefreshSeconds int `json:"refresh_seconds" toml:"refresh_seconds" yaml:"refresh_seconds"`
}

// Load reads configuration from a file, decoding by extension
// (.json, .toml, .yaml or .yml). If the file doesn't exist, returns a
// default configuration. Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Feeds: FeedsConfig{
			StatusURL:      vatsim.StatusURL,
			HistoryBaseURL: vatsim.HistoryBaseURL,
			StatsBaseURL:   vatsim.StatsBaseURL,
			UserAgent:      vatsim.DefaultUserAgent,
			TimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "vatsimfeeds",
			Username:     "vatsimfeeds",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Collector: CollectorConfig{
			PollIntervalSeconds:    15,
			ReresolveAfterFailures: 3,
			RetentionHours:         24,
			CleanupIntervalMinutes: 60,
			StatsIntervalMinutes:   5,
		},
		Web: WebConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Radar: RadarConfig{
			Airport:        "KSAN",
			RadiusMiles:    50,
			RefreshSeconds: 15,
		},
	}
}

// Validate checks value ranges and that every configured airport exists in
// the bundled reference table.
func (c *Config) Validate() error {
	var errs []error

	if c.Feeds.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("feeds.timeout_seconds must be positive"))
	}
	if c.Collector.PollIntervalSeconds <= 0 {
		errs = append(errs, errors.New("collector.poll_interval_seconds must be positive"))
	}
	if c.Collector.ReresolveAfterFailures < 0 {
		errs = append(errs, errors.New("collector.reresolve_after_failures must not be negative"))
	}
	if c.Radar.RadiusMiles <= 0 {
		errs = append(errs, errors.New("radar.radius_miles must be positive"))
	}
	if c.Radar.RefreshSeconds <= 0 {
		errs = append(errs, errors.New("radar.refresh_seconds must be positive"))
	}
	if _, err := strconv.Atoi(c.Web.Port); err != nil {
		errs = append(errs, fmt.Errorf("web.port %q is not a number", c.Web.Port))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	table, err := geo.Bundled()
	if err != nil {
		errs = append(errs, fmt.Errorf("airport table: %w", err))
	} else {
		if _, err := table.Resolve(c.Collector.ReferenceAirports); err != nil {
			errs = append(errs, fmt.Errorf("collector.reference_airports: %w", err))
		}
		if c.Radar.Airport != "" {
			if _, err := table.Lookup(c.Radar.Airport); err != nil {
				errs = append(errs, fmt.Errorf("radar.airport: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// ClientConfig builds the feed client configuration.
func (f FeedsConfig) ClientConfig(log *logger.Logger) vatsim.Config {
	return vatsim.Config{
		Timeout:        time.Duration(f.TimeoutSeconds) * time.Second,
		UserAgent:      f.UserAgent,
		StatusURL:      f.StatusURL,
		HistoryBaseURL: f.HistoryBaseURL,
		StatsBaseURL:   f.StatsBaseURL,
		Logger:         log,
	}
}

// LoggerConfig converts the logging section for logger.New.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}

// PollInterval returns the collector poll interval.
func (c CollectorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Retention returns how long history is kept.
func (c CollectorConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Address returns host:port for the web server.
func (w WebConfig) Address() string {
	return w.Host + ":" + w.Port
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if dbPassword := os.Getenv("VATSIM_FEEDS_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbHost := os.Getenv("VATSIM_FEEDS_DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if level := os.Getenv("VATSIM_FEEDS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("VATSIM_FEEDS_WEB_PORT"); port != "" {
		c.Web.Port = port
	}
	if statusURL := os.Getenv("VATSIM_FEEDS_STATUS_URL"); statusURL != "" {
		c.Feeds.StatusURL = statusURL
	}
}
