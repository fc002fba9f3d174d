// Package config loads the YAML configuration shared by the example
// applications. A file only needs the keys it wants to override; Load
// starts from Default and layers the file on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Modes accepted by ClientConfig.Mode.
const (
	ModeHTTP    = "http"
	ModeFixture = "fixture"
)

// Config is the complete configuration of a search application
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Client    ClientConfig    `yaml:"client"`
	Cache     CacheConfig     `yaml:"cache"`
	Journal   JournalConfig   `yaml:"journal"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProjectConfig identifies the search project
type ProjectConfig struct {
	ID string `yaml:"id"`
}

// ClientConfig selects and configures the search backend
type ClientConfig struct {
	// Mode is "http" for a live backend or "fixture" for canned responses
	Mode           string `yaml:"mode"`
	BaseURL        string `yaml:"base_url"`
	Version        string `yaml:"version"`
	BearerToken    string `yaml:"bearer_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FixtureURL     string `yaml:"fixture_url"`
	FixtureDelayMS int    `yaml:"fixture_delay_ms"`
}

// Timeout returns the HTTP client timeout
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FixtureDelay returns the artificial per-operation fixture delay
func (c ClientConfig) FixtureDelay() time.Duration {
	return time.Duration(c.FixtureDelayMS) * time.Millisecond
}

// CacheConfig contains response cache settings
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	SizeMB     int    `yaml:"size_mb"`
}

// TTL returns the cache entry lifetime; zero means entries never expire
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// JournalConfig contains settlement journal settings
type JournalConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

// AnalyticsConfig contains MQTT analytics settings
type AnalyticsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	ClientID string `yaml:"client_id"`
}

// BrokerURL returns the tcp:// address of the MQTT broker
func (c AnalyticsConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Project: ProjectConfig{ID: "default"},
		Client: ClientConfig{
			Mode:           ModeFixture,
			Version:        "2023-03-31",
			TimeoutSeconds: 30,
			FixtureURL:     "file://fixtures",
		},
		Cache: CacheConfig{
			Dir:        "searchcache",
			TTLSeconds: 300,
			SizeMB:     8,
		},
		Journal: JournalConfig{
			Path:      "searchlog.db",
			QueueSize: 4096,
		},
		Analytics: AnalyticsConfig{
			Port:     1883,
			Topic:    "search/events",
			ClientID: "searchfn",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Client.Mode = strings.ToLower(strings.TrimSpace(c.Client.Mode))
	c.Client.BaseURL = strings.TrimRight(c.Client.BaseURL, "/")
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate reports the first configuration error found
func (c *Config) Validate() error {
	switch c.Client.Mode {
	case ModeHTTP:
		if c.Client.BaseURL == "" {
			return fmt.Errorf("client.base_url is required when client.mode is %q", ModeHTTP)
		}
	case ModeFixture:
		if c.Client.FixtureURL == "" {
			return fmt.Errorf("client.fixture_url is required when client.mode is %q", ModeFixture)
		}
	default:
		return fmt.Errorf("client.mode must be %q or %q, got %q", ModeHTTP, ModeFixture, c.Client.Mode)
	}
	if c.Client.TimeoutSeconds < 0 {
		return fmt.Errorf("client.timeout_seconds must not be negative, got %d", c.Client.TimeoutSeconds)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when the cache is enabled")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if c.Analytics.Enabled && c.Analytics.Broker == "" {
		return fmt.Errorf("analytics.broker is required when analytics is enabled")
	}
	if c.Analytics.QoS < 0 || c.Analytics.QoS > 2 {
		return fmt.Errorf("analytics.qos must be 0, 1 or 2, got %d", c.Analytics.QoS)
	}
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

// Print displays the effective configuration
func (c *Config) Print() {
	fmt.Printf("Project: %s\n", c.Project.ID)
	switch c.Client.Mode {
	case ModeHTTP:
		fmt.Printf("Client: http %s (version %s, timeout %s)\n", c.Client.BaseURL, c.Client.Version, c.Client.Timeout())
	case ModeFixture:
		fmt.Printf("Client: fixture %s (delay %s)\n", c.Client.FixtureURL, c.Client.FixtureDelay())
	}
	if c.Cache.Enabled {
		fmt.Printf("Cache: %s (ttl %s, %d MB)\n", c.Cache.Dir, c.Cache.TTL(), c.Cache.SizeMB)
	}
	if c.Journal.Enabled {
		fmt.Printf("Journal: %s (queue %d)\n", c.Journal.Path, c.Journal.QueueSize)
	}
	if c.Analytics.Enabled {
		fmt.Printf("Analytics: %s (topic %s, qos %d)\n", c.Analytics.BrokerURL(), c.Analytics.Topic, c.Analytics.QoS)
	}
}
