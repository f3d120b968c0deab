package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the OSC bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	OSC       OSCConfig       `yaml:"osc"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	State     StateConfig     `yaml:"state"`
	Entities  []EntityConfig  `yaml:"entities"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID string `yaml:"id"`
}

// OSCConfig contains the UDP endpoints of the OSC side.
type OSCConfig struct {
	// Listen is the host:port the bridge receives OSC packets on.
	Listen string `yaml:"listen"`

	// TargetHost and TargetPort address the OSC application commands are sent to.
	TargetHost string `yaml:"target_host"`
	TargetPort int    `yaml:"target_port"`

	// LocalHost and LocalPort pin the source address of outgoing packets.
	// Some applications only accept packets from a known port. Optional.
	LocalHost string `yaml:"local_host"`
	LocalPort int    `yaml:"local_port"`

	// ReadBuffer is the socket receive buffer size in bytes. 0 keeps the OS default.
	ReadBuffer int `yaml:"read_buffer"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"`
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

// DiscoveryConfig controls Home Assistant MQTT discovery.
type DiscoveryConfig struct {
	Namespace      string `yaml:"namespace"`
	NamePrefix     string `yaml:"name_prefix"`
	UniqueIDPrefix string `yaml:"unique_id_prefix"`
	Retain         bool   `yaml:"retain"`
	SuggestedArea  string `yaml:"suggested_area"`
	DeviceName     string `yaml:"device_name"`
}

// StateConfig controls state topic publications.
type StateConfig struct {
	Retain bool `yaml:"retain"`
}

// EntityConfig declares an entity to register at startup instead of on first sight.
type EntityConfig struct {
	Address string `yaml:"address"`
	Type    string `yaml:"type"` // bool, int, or float
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: OSCBRIDGE_SECTION_KEY
// For example: OSCBRIDGE_MQTT_HOST, OSCBRIDGE_OSC_LISTEN
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID: "oscbridge",
		},
		OSC: OSCConfig{
			Listen:     "127.0.0.1:9001",
			TargetHost: "127.0.0.1",
			TargetPort: 9000,
			ReadBuffer: 65535,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "oscbridge",
			},
			QoS:       1,
			KeepAlive: 20,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Discovery: DiscoveryConfig{
			Namespace:      "homeassistant",
			NamePrefix:     "Osc",
			UniqueIDPrefix: "osc.",
			Retain:         true,
			SuggestedArea:  "Osc",
			DeviceName:     "OSC Bridge",
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "oscbridge",
			Bucket:        "osc",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/oscbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// OSC
	if v := os.Getenv("OSCBRIDGE_OSC_LISTEN"); v != "" {
		cfg.OSC.Listen = v
	}
	if v := os.Getenv("OSCBRIDGE_OSC_TARGET_HOST"); v != "" {
		cfg.OSC.TargetHost = v
	}

	// MQTT
	if v := os.Getenv("OSCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OSCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OSCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("OSCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("OSCBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// OSC validation
	if c.OSC.Listen == "" {
		errs = append(errs, "osc.listen is required")
	} else if _, _, err := net.SplitHostPort(c.OSC.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("osc.listen %q is not host:port", c.OSC.Listen))
	}
	if c.OSC.TargetHost == "" {
		errs = append(errs, "osc.target_host is required")
	}
	if !validPort(c.OSC.TargetPort) {
		errs = append(errs, "osc.target_port must be between 1 and 65535")
	}
	if c.OSC.LocalPort < 0 || c.OSC.LocalPort > 65535 {
		errs = append(errs, "osc.local_port must be between 0 and 65535")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if !validPort(c.MQTT.Broker.Port) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive must not be negative")
	}

	// Discovery validation
	if c.Discovery.Namespace == "" {
		errs = append(errs, "discovery.namespace is required")
	} else if strings.ContainsAny(c.Discovery.Namespace, "#+") {
		errs = append(errs, "discovery.namespace must not contain MQTT wildcards")
	}
	if c.Discovery.NamePrefix == "" {
		errs = append(errs, "discovery.name_prefix is required")
	}

	// Static entities
	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		if !strings.HasPrefix(e.Address, "/") {
			errs = append(errs, fmt.Sprintf("entities[%d].address %q must start with /", i, e.Address))
		}
		switch strings.ToLower(e.Type) {
		case "bool", "int", "float":
		default:
			errs = append(errs, fmt.Sprintf("entities[%d].type %q must be bool, int, or float", i, e.Type))
		}
		if seen[e.Address] {
			errs = append(errs, fmt.Sprintf("entities[%d].address %q is declared twice", i, e.Address))
		}
		seen[e.Address] = true
	}

	// Optional sinks
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.API.Enabled && !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// String returns a YAML rendering of the configuration with credentials redacted.
func (c Config) String() string {
	if c.MQTT.Auth.Password != "" {
		c.MQTT.Auth.Password = redacted
	}
	if c.InfluxDB.Token != "" {
		c.InfluxDB.Token = redacted
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

const redacted = "[REDACTED]"

// TargetAddr returns the OSC target as host:port.
func (c *Config) TargetAddr() string {
	return net.JoinHostPort(c.OSC.TargetHost, fmt.Sprint(c.OSC.TargetPort))
}

// GetKeepAlive returns the MQTT keep-alive interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
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
