package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearSourceEnv blanks the credential variables so the host environment
// cannot leak into a test.
func clearSourceEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ENDPOINT_URL", "ORG", "CREDENTIAL_TOKEN", "BUCKET", "FIELD", "OCCUPANCY_SOURCE_BACKEND", "OCCUPANCY_POLL_INTERVAL", "OCCUPANCY_API_PORT", "OCCUPANCY_MQTT_HOST"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	clearSourceEnv(t)
	configPath := writeConfig(t, `
source:
  endpoint: "http://influx.local:8086"
  org: "gym"
  token: "secret-token"
dashboard:
  poll_interval: 5m
display:
  timezone: "UTC"
api:
  host: "127.0.0.1"
  port: 9090
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Endpoint != "http://influx.local:8086" {
		t.Errorf("Source.Endpoint = %q", cfg.Source.Endpoint)
	}
	if cfg.Source.Bucket != DefaultBucket {
		t.Errorf("Source.Bucket = %q, want %q", cfg.Source.Bucket, DefaultBucket)
	}
	if cfg.Source.Field != DefaultField {
		t.Errorf("Source.Field = %q, want %q", cfg.Source.Field, DefaultField)
	}
	if cfg.Dashboard.PollInterval != 5*time.Minute {
		t.Errorf("Dashboard.PollInterval = %v, want 5m", cfg.Dashboard.PollInterval)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearSourceEnv(t)
	t.Setenv("ENDPOINT_URL", "http://localhost:8086")
	t.Setenv("ORG", "gym")
	t.Setenv("CREDENTIAL_TOKEN", "tok")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Dashboard.PollInterval != 10*time.Minute {
		t.Errorf("default PollInterval = %v, want 10m", cfg.Dashboard.PollInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingCredential(t *testing.T) {
	clearSourceEnv(t)
	t.Setenv("ENDPOINT_URL", "http://localhost:8086")
	t.Setenv("ORG", "gym")

	_, err := Load("")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Load() error = %v, want *ConfigError", err)
	}
	if len(cfgErr.Missing) != 1 || !strings.Contains(cfgErr.Missing[0], "CREDENTIAL_TOKEN") {
		t.Errorf("Missing = %v, want only the credential", cfgErr.Missing)
	}
	if !strings.Contains(err.Error(), "credential") {
		t.Errorf("error %q should name the missing field", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		source      SourceConfig
		wantMissing []string
	}{
		{
			name:   "complete",
			source: SourceConfig{Endpoint: "http://x", Org: "o", Token: "t"},
		},
		{
			name:        "all missing",
			source:      SourceConfig{},
			wantMissing: []string{"endpoint", "organization", "credential"},
		},
		{
			name:        "blank values count as missing",
			source:      SourceConfig{Endpoint: "  ", Org: "o", Token: "\t"},
			wantMissing: []string{"endpoint", "credential"},
		},
		{
			name:        "org only missing",
			source:      SourceConfig{Endpoint: "http://x", Token: "t"},
			wantMissing: []string{"organization"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Source: tt.source}
			err := cfg.Resolve()

			if len(tt.wantMissing) == 0 {
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if cfg.Source.Bucket != DefaultBucket || cfg.Source.Field != DefaultField {
					t.Errorf("defaults not applied: bucket=%q field=%q", cfg.Source.Bucket, cfg.Source.Field)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Resolve() error = %v, want *ConfigError", err)
			}
			if len(cfgErr.Missing) != len(tt.wantMissing) {
				t.Fatalf("Missing = %v, want %v", cfgErr.Missing, tt.wantMissing)
			}
			for i, want := range tt.wantMissing {
				if !strings.HasPrefix(cfgErr.Missing[i], want) {
					t.Errorf("Missing[%d] = %q, want prefix %q", i, cfgErr.Missing[i], want)
				}
			}
		})
	}
}

func TestResolve_KeepsExplicitBucketAndField(t *testing.T) {
	cfg := &Config{Source: SourceConfig{Endpoint: "http://x", Org: "o", Token: "t", Bucket: "b", Field: "f"}}
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Source.Bucket != "b" || cfg.Source.Field != "f" {
		t.Errorf("bucket/field = %q/%q, want b/f", cfg.Source.Bucket, cfg.Source.Field)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Source.Endpoint = "http://x"
		cfg.Source.Org = "o"
		cfg.Source.Token = "t"
		cfg.Display.Timezone = "UTC"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "victoriametrics backend", mutate: func(c *Config) { c.Source.Backend = BackendVictoriaMetrics }},
		{name: "unknown backend", mutate: func(c *Config) { c.Source.Backend = "graphite" }, wantErr: true},
		{name: "zero step", mutate: func(c *Config) { c.Source.Backend = BackendVictoriaMetrics; c.Source.Step = 0 }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Dashboard.PollInterval = 0 }, wantErr: true},
		{name: "negative fetch timeout", mutate: func(c *Config) { c.Dashboard.FetchTimeout = -time.Second }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.Display.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "invalid QoS when enabled", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid QoS ignored when disabled", mutate: func(c *Config) { c.MQTT.QoS = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ENDPOINT_URL", "http://influx:8086")
	t.Setenv("ORG", "gym")
	t.Setenv("CREDENTIAL_TOKEN", "secret-token")
	t.Setenv("BUCKET", "other-bucket")
	t.Setenv("FIELD", "Visitors")
	t.Setenv("OCCUPANCY_SOURCE_BACKEND", BackendVictoriaMetrics)
	t.Setenv("OCCUPANCY_POLL_INTERVAL", "90s")
	t.Setenv("OCCUPANCY_API_HOST", "192.168.1.1")
	t.Setenv("OCCUPANCY_API_PORT", "8181")
	t.Setenv("OCCUPANCY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("OCCUPANCY_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Source.Endpoint != "http://influx:8086" {
		t.Errorf("Source.Endpoint = %q", cfg.Source.Endpoint)
	}
	if cfg.Source.Org != "gym" {
		t.Errorf("Source.Org = %q", cfg.Source.Org)
	}
	if cfg.Source.Token != "secret-token" {
		t.Errorf("Source.Token = %q", cfg.Source.Token)
	}
	if cfg.Source.Bucket != "other-bucket" || cfg.Source.Field != "Visitors" {
		t.Errorf("bucket/field = %q/%q", cfg.Source.Bucket, cfg.Source.Field)
	}
	if cfg.Source.Backend != BackendVictoriaMetrics {
		t.Errorf("Source.Backend = %q", cfg.Source.Backend)
	}
	if cfg.Dashboard.PollInterval != 90*time.Second {
		t.Errorf("PollInterval = %v, want 90s", cfg.Dashboard.PollInterval)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 8181 {
		t.Errorf("API = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT enabled=%v host=%q", cfg.MQTT.Enabled, cfg.MQTT.Broker.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Run("poll interval", func(t *testing.T) {
		t.Setenv("OCCUPANCY_POLL_INTERVAL", "soon")
		if err := applyEnvOverrides(defaultConfig()); err == nil {
			t.Error("expected error for unparsable poll interval")
		}
	})
	t.Run("api port", func(t *testing.T) {
		t.Setenv("OCCUPANCY_POLL_INTERVAL", "")
		t.Setenv("OCCUPANCY_API_PORT", "eighty")
		if err := applyEnvOverrides(defaultConfig()); err == nil {
			t.Error("expected error for non-numeric port")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("CREDENTIAL_TOKEN", "from-environment")

	path := filepath.Join(t.TempDir(), ".env")
	content := "CREDENTIAL_TOKEN=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}

	if got := os.Getenv("CREDENTIAL_TOKEN"); got != "from-environment" {
		t.Errorf("CREDENTIAL_TOKEN = %q, existing variables must win", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnvFile() on missing file = %v, want nil", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Source.Backend != BackendInfluxDB {
		t.Errorf("default backend = %q", cfg.Source.Backend)
	}
	if cfg.Dashboard.PollInterval != 600_000*time.Millisecond {
		t.Errorf("default poll interval = %v", cfg.Dashboard.PollInterval)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
