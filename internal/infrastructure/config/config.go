package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the occupancy source.
const (
	DefaultBucket       = "puregymbucket"
	DefaultField        = "People"
	DefaultPollInterval = 600_000 * time.Millisecond
	DefaultFetchTimeout = 30 * time.Second
)

// Supported time-series backends.
const (
	BackendInfluxDB        = "influxdb"
	BackendVictoriaMetrics = "victoriametrics"
)

// Config is the root configuration structure for the occupancy dashboard.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Display   DisplayConfig   `yaml:"display"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourceConfig identifies the time-series store and the series to chart.
//
// Endpoint, Org and Token are the static credential triple and have no
// defaults. Bucket and Field default to the occupancy series.
type SourceConfig struct {
	Backend  string `yaml:"backend"`
	Endpoint string `yaml:"endpoint"`
	Org      string `yaml:"org"`
	Token    string `yaml:"token"`
	Bucket   string `yaml:"bucket"`
	Field    string `yaml:"field"`

	// Step is the PromQL resolution in seconds (victoriametrics backend only).
	Step int `yaml:"step"`

	// BatchSize and FlushInterval (seconds) tune the write API used by the seeder.
	BatchSize     int `yaml:"batch_size"`
	FlushInterval int `yaml:"flush_interval"`
}

// DashboardConfig contains polling settings.
type DashboardConfig struct {
	// PollInterval is the automatic refresh cadence. Default: 10m.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FetchTimeout bounds a single fetch. Zero disables the bound.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DisplayConfig controls how timestamps are labelled on the chart.
type DisplayConfig struct {
	Timezone   string `yaml:"timezone"`
	TimeLayout string `yaml:"time_layout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the latest-value publisher.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ConfigError reports required connection parameters that are absent or empty.
// It is fatal: the dashboard does not start.
//
//nolint:revive // ConfigError is the name used across the codebase and docs.
type ConfigError struct {
	Missing []string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return "config: missing required setting(s): " + strings.Join(e.Missing, ", ")
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// The credential triple is then resolved (see Resolve) and the remaining
// settings validated.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for none
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: *ConfigError (wrapped) when the triple is incomplete, or a
//     read/parse/validation error
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set are left untouched, and a
// missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Backend:       BackendInfluxDB,
			Bucket:        DefaultBucket,
			Field:         DefaultField,
			Step:          60,
			BatchSize:     100,
			FlushInterval: 1,
		},
		Dashboard: DashboardConfig{
			PollInterval: DefaultPollInterval,
			FetchTimeout: DefaultFetchTimeout,
		},
		Display: DisplayConfig{
			Timezone:   "Local",
			TimeLayout: "02/01/2006 15:04:05",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "occupancy-dashboard",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "occupancy",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
//
// The source triple uses the deployment names ENDPOINT_URL, ORG and
// CREDENTIAL_TOKEN (plus BUCKET and FIELD); everything else follows the
// pattern OCCUPANCY_SECTION_KEY.
func applyEnvOverrides(cfg *Config) error {
	// Source
	setString(&cfg.Source.Endpoint, "ENDPOINT_URL")
	setString(&cfg.Source.Org, "ORG")
	setString(&cfg.Source.Token, "CREDENTIAL_TOKEN")
	setString(&cfg.Source.Bucket, "BUCKET")
	setString(&cfg.Source.Field, "FIELD")
	setString(&cfg.Source.Backend, "OCCUPANCY_SOURCE_BACKEND")

	// Dashboard
	if v := os.Getenv("OCCUPANCY_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OCCUPANCY_POLL_INTERVAL: %w", err)
		}
		cfg.Dashboard.PollInterval = d
	}

	// Display
	setString(&cfg.Display.Timezone, "OCCUPANCY_TIMEZONE")

	// API
	setString(&cfg.API.Host, "OCCUPANCY_API_HOST")
	if v := os.Getenv("OCCUPANCY_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OCCUPANCY_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// MQTT
	if v := os.Getenv("OCCUPANCY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
		cfg.MQTT.Enabled = true
	}
	setString(&cfg.MQTT.Auth.Username, "OCCUPANCY_MQTT_USERNAME")
	setString(&cfg.MQTT.Auth.Password, "OCCUPANCY_MQTT_PASSWORD")

	// Logging
	setString(&cfg.Logging.Level, "OCCUPANCY_LOG_LEVEL")
	setString(&cfg.Logging.Format, "OCCUPANCY_LOG_FORMAT")

	return nil
}

// setString overwrites dst with the named variable when it is set and non-empty.
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Resolve checks the source connection parameters.
//
// Endpoint, organisation and credential are required; every one that is
// absent or blank is named in the returned *ConfigError. Blank bucket and
// field fall back to DefaultBucket and DefaultField.
func (c *Config) Resolve() error {
	c.Source.Endpoint = strings.TrimSpace(c.Source.Endpoint)
	c.Source.Org = strings.TrimSpace(c.Source.Org)
	c.Source.Token = strings.TrimSpace(c.Source.Token)

	var missing []string
	if c.Source.Endpoint == "" {
		missing = append(missing, "endpoint (ENDPOINT_URL)")
	}
	if c.Source.Org == "" {
		missing = append(missing, "organization (ORG)")
	}
	if c.Source.Token == "" {
		missing = append(missing, "credential (CREDENTIAL_TOKEN)")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	if strings.TrimSpace(c.Source.Bucket) == "" {
		c.Source.Bucket = DefaultBucket
	}
	if strings.TrimSpace(c.Source.Field) == "" {
		c.Source.Field = DefaultField
	}

	return nil
}

// Validate checks the non-credential settings for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Source.Backend {
	case BackendInfluxDB, BackendVictoriaMetrics:
	default:
		errs = append(errs, fmt.Sprintf("source.backend must be %q or %q", BackendInfluxDB, BackendVictoriaMetrics))
	}
	if c.Source.Backend == BackendVictoriaMetrics && c.Source.Step <= 0 {
		errs = append(errs, "source.step must be positive")
	}

	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, "dashboard.poll_interval must be positive")
	}
	if c.Dashboard.FetchTimeout < 0 {
		errs = append(errs, "dashboard.fetch_timeout must not be negative")
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("display.timezone: %v", err))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Display.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Display.Timezone)
	}
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
