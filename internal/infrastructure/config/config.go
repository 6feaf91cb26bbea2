package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearthsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	Realtime RealtimeConfig `yaml:"realtime"`
	API      APIConfig      `yaml:"api"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CloudConfig contains the remote account endpoints and credential.
type CloudConfig struct {
	// Credential is the long-lived account credential exchanged for an
	// access token. Always set HEARTHSYNC_CREDENTIAL in production rather
	// than writing it into the file.
	Credential string `yaml:"credential"`

	// ExchangeURL is the credential exchange endpoint.
	ExchangeURL string `yaml:"exchange_url"`

	// RevokeURL is the credential revocation endpoint.
	RevokeURL string `yaml:"revoke_url"`

	// TimeoutSeconds bounds each auth HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// RealtimeConfig selects and configures the push-feed transport.
type RealtimeConfig struct {
	// Driver is "mqtt" or "websocket".
	Driver string `yaml:"driver"`

	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// TopicPrefix is prepended to every store path when mapped to a topic.
	TopicPrefix string `yaml:"topic_prefix"`

	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// WebSocketConfig contains websocket feed settings.
type WebSocketConfig struct {
	URL            string `yaml:"url"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// HistoryConfig contains InfluxDB settings for the capability-change recorder.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARTHSYNC_SECTION_KEY
// For example: HEARTHSYNC_CREDENTIAL, HEARTHSYNC_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			TimeoutSeconds: 10,
		},
		Realtime: RealtimeConfig{
			Driver: "websocket",
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "localhost",
					Port:     1883,
					ClientID: "hearthsync",
				},
				QoS:         1,
				TopicPrefix: "hearthsync",
				Reconnect: MQTTReconnectConfig{
					InitialDelay: 1,
					MaxDelay:     60,
				},
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 1 << 20,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8710,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		History: HistoryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARTHSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud overrides. The credential should never live in the file in production.
	if v := os.Getenv("HEARTHSYNC_CREDENTIAL"); v != "" {
		cfg.Cloud.Credential = v
	}
	if v := os.Getenv("HEARTHSYNC_EXCHANGE_URL"); v != "" {
		cfg.Cloud.ExchangeURL = v
	}
	if v := os.Getenv("HEARTHSYNC_REVOKE_URL"); v != "" {
		cfg.Cloud.RevokeURL = v
	}

	// Realtime
	if v := os.Getenv("HEARTHSYNC_MQTT_HOST"); v != "" {
		cfg.Realtime.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARTHSYNC_MQTT_USERNAME"); v != "" {
		cfg.Realtime.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARTHSYNC_MQTT_PASSWORD"); v != "" {
		cfg.Realtime.MQTT.Auth.Password = v
	}
	if v := os.Getenv("HEARTHSYNC_WEBSOCKET_URL"); v != "" {
		cfg.Realtime.WebSocket.URL = v
	}

	// History
	if v := os.Getenv("HEARTHSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.History.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Cloud.ExchangeURL == "" {
		errs = append(errs, "cloud.exchange_url is required")
	}
	if c.Cloud.RevokeURL == "" {
		errs = append(errs, "cloud.revoke_url is required")
	}

	switch c.Realtime.Driver {
	case "mqtt":
		if c.Realtime.MQTT.QoS < 0 || c.Realtime.MQTT.QoS > 2 {
			errs = append(errs, "realtime.mqtt.qos must be 0, 1, or 2")
		}
	case "websocket":
		if c.Realtime.WebSocket.URL == "" {
			errs = append(errs, "realtime.websocket.url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("realtime.driver %q is not supported (mqtt, websocket)", c.Realtime.Driver))
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.History.Enabled {
		if c.History.URL == "" {
			errs = append(errs, "history.url is required when history is enabled")
		}
		if c.History.Bucket == "" {
			errs = append(errs, "history.bucket is required when history is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCloudTimeout returns the auth request timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Cloud.TimeoutSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
