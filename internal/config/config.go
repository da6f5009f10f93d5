// ABOUTME: Configuration loading and parsing for the mindmatters worker and CLI
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config represents the complete mindmatters configuration.
// The worker daemon and the foreground CLI read the same file.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Origin        OriginConfig        `yaml:"origin"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Connectivity  ConnectivityConfig  `yaml:"connectivity"`
	External      ExternalConfig      `yaml:"external"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the worker listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// OriginConfig describes the app origin the worker fronts
type OriginConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig holds the entry database location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds cache generation settings
type CacheConfig struct {
	NamePrefix string `yaml:"name_prefix"`
	Version    string `yaml:"version"`
	Path       string `yaml:"path"`
	Manifest   string `yaml:"manifest"` // optional TOML manifest; built-in list when empty
	APIMarker  string `yaml:"api_marker"`
}

// SyncConfig holds remote sync settings
type SyncConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Interval      time.Duration `yaml:"-"`
	Timeout       time.Duration `yaml:"-"`
	LedgerTTL     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IntervalRaw  string `yaml:"interval"`
	TimeoutRaw   string `yaml:"timeout"`
	LedgerTTLRaw string `yaml:"ledger_ttl"`
}

// NotificationsConfig holds reminder and display settings
type NotificationsConfig struct {
	Title       string `yaml:"title"`
	Body        string `yaml:"body"`
	Icon        string `yaml:"icon"`
	Badge       string `yaml:"badge"`
	JournalPath string `yaml:"journal_path"`
	WebhookURL  string `yaml:"webhook_url"`

	PeriodicInterval    time.Duration `yaml:"-"`
	PeriodicIntervalRaw string        `yaml:"periodic_interval"`
}

// ConnectivityConfig holds the online/offline probe settings
type ConnectivityConfig struct {
	ProbeURL    string        `yaml:"probe_url"`
	Interval    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
}

// ExternalConfig holds the weather/quote/geolocation collaborators
type ExternalConfig struct {
	WeatherURL string   `yaml:"weather_url"`
	QuoteURLs  []string `yaml:"quote_urls"`
	GeoURL     string   `yaml:"geo_url"`
	Latitude   float64  `yaml:"latitude"`
	Longitude  float64  `yaml:"longitude"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // rotated with lumberjack when set
}

// Default values
const (
	DefaultHTTPAddr        = "127.0.0.1:8787"
	DefaultOriginURL       = "http://127.0.0.1:3000"
	DefaultCachePrefix     = "mindmatters-cache"
	DefaultCacheVersion    = "1"
	DefaultAPIMarker       = "/api/"
	DefaultSyncInterval    = 15 * time.Minute
	DefaultSyncTimeout     = 10 * time.Second
	DefaultLedgerTTL       = 10 * time.Minute
	DefaultSyncRate        = 2.0
	DefaultPeriodic        = 15 * time.Minute
	DefaultProbeInterval   = 30 * time.Second
	DefaultExternalTimeout = 5 * time.Second
	DefaultLatitude        = 40.7128
	DefaultLongitude       = -74.0060
	DefaultReminderTitle   = "MindMatters Daily Check-in"
	DefaultReminderBody    = "How are you feeling today? Take a moment to log your mood."
)

// DefaultPath returns the config file location.
// Priority: MINDMATTERS_CONFIG env var > XDG_CONFIG_HOME/mindmatters/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("MINDMATTERS_CONFIG"); envPath != "" {
		return envPath
	}
	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, "mindmatters", "config.yaml")
}

// DataDir returns the directory holding the databases and logs.
func DataDir() string {
	if envDir := os.Getenv("MINDMATTERS_DATA_DIR"); envDir != "" {
		return envDir
	}
	xdg.Reload()
	return filepath.Join(xdg.DataHome, "mindmatters")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. Used by the foreground CLI, which must work before init.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse parses raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Origin.URL == "" {
		c.Origin.URL = DefaultOriginURL
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(DataDir(), "entries.db")
	}
	if c.Cache.NamePrefix == "" {
		c.Cache.NamePrefix = DefaultCachePrefix
	}
	if c.Cache.Version == "" {
		c.Cache.Version = DefaultCacheVersion
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(DataDir(), "cache.db")
	}
	if c.Cache.APIMarker == "" {
		c.Cache.APIMarker = DefaultAPIMarker
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.Timeout == 0 {
		c.Sync.Timeout = DefaultSyncTimeout
	}
	if c.Sync.LedgerTTL == 0 {
		c.Sync.LedgerTTL = DefaultLedgerTTL
	}
	if c.Sync.RatePerSecond == 0 {
		c.Sync.RatePerSecond = DefaultSyncRate
	}
	if c.Notifications.Title == "" {
		c.Notifications.Title = DefaultReminderTitle
	}
	if c.Notifications.Body == "" {
		c.Notifications.Body = DefaultReminderBody
	}
	if c.Notifications.Icon == "" {
		c.Notifications.Icon = "/icons/icon-192x192.png"
	}
	if c.Notifications.Badge == "" {
		c.Notifications.Badge = "/icons/badge-96x96.png"
	}
	if c.Notifications.JournalPath == "" {
		c.Notifications.JournalPath = "/journal"
	}
	if c.Notifications.PeriodicInterval == 0 {
		c.Notifications.PeriodicInterval = DefaultPeriodic
	}
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = c.Origin.URL
	}
	if c.Connectivity.Interval == 0 {
		c.Connectivity.Interval = DefaultProbeInterval
	}
	if c.External.Timeout == 0 {
		c.External.Timeout = DefaultExternalTimeout
	}
	if c.External.WeatherURL == "" {
		c.External.WeatherURL = "https://api.open-meteo.com/v1/forecast"
	}
	if len(c.External.QuoteURLs) == 0 {
		c.External.QuoteURLs = []string{
			"https://api.zenquotes.io/v1/random",
			"https://api.quotable.io/random",
		}
	}
	if c.External.GeoURL == "" {
		c.External.GeoURL = "https://ipapi.co/json/"
	}
	if c.External.Latitude == 0 && c.External.Longitude == 0 {
		c.External.Latitude = DefaultLatitude
		c.External.Longitude = DefaultLongitude
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	u, err := url.Parse(c.Origin.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin.url must be an absolute URL, got %q", c.Origin.URL)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required")
	}

	if !validVersion.MatchString(c.Cache.Version) {
		return fmt.Errorf("cache.version %q must be alphanumeric (dots, dashes allowed)", c.Cache.Version)
	}

	if c.Sync.Endpoint != "" {
		u, err := url.Parse(c.Sync.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("sync.endpoint must be an absolute URL, got %q", c.Sync.Endpoint)
		}
	}

	if c.Sync.RatePerSecond < 0 {
		return fmt.Errorf("sync.rate_per_second must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

var validVersion = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]*$`)

// CacheName returns the version-qualified name of the current cache generation.
func (c *Config) CacheName() string {
	return c.Cache.NamePrefix + "-v" + c.Cache.Version
}

// WorkerURL returns the base URL the foreground uses to reach the worker.
func (c *Config) WorkerURL() string {
	return "http://" + c.Server.HTTPAddr
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"sync.interval", cfg.Sync.IntervalRaw, &cfg.Sync.Interval},
		{"sync.timeout", cfg.Sync.TimeoutRaw, &cfg.Sync.Timeout},
		{"sync.ledger_ttl", cfg.Sync.LedgerTTLRaw, &cfg.Sync.LedgerTTL},
		{"notifications.periodic_interval", cfg.Notifications.PeriodicIntervalRaw, &cfg.Notifications.PeriodicInterval},
		{"connectivity.interval", cfg.Connectivity.IntervalRaw, &cfg.Connectivity.Interval},
		{"external.timeout", cfg.External.TimeoutRaw, &cfg.External.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
