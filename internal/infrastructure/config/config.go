package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selector tokens accepted in the devices list.
const (
	BTTypeBLE  = "ble"
	BTTypeBT   = "bt"
	BTTypeAuto = "auto"
)

// Config is the root configuration structure for the presence agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Room     string         `yaml:"room"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Topics   TopicsConfig   `yaml:"topics"`
	Scan     ScanConfig     `yaml:"scan"`
	Devices  []DeviceConfig `yaml:"devices"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keepalive"`
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

// MQTTReconnectConfig bounds the reconnect loop run at each cycle boundary.
type MQTTReconnectConfig struct {
	// Attempts is the number of reconnect tries per cycle boundary.
	Attempts int `yaml:"attempts"`

	// Delay is the pause between attempts, and the backoff before the
	// cycle is retried when every attempt failed (seconds).
	Delay int `yaml:"delay"`
}

// TopicsConfig controls the outbound topic layout.
type TopicsConfig struct {
	// OwnerPrefix is the namespace for the full device record:
	// <owner_prefix>/<room>/<ADDRESS>
	OwnerPrefix string `yaml:"owner_prefix"`

	// PresencePrefix is the namespace for the home/away classification:
	// <presence_prefix>/<name>
	PresencePrefix string `yaml:"presence_prefix"`

	// Retain marks published messages as retained on the broker.
	Retain bool `yaml:"retain"`
}

// ScanConfig contains the scan scheduling settings.
type ScanConfig struct {
	// BLETimeout is the broadcast scan duration in seconds.
	BLETimeout int `yaml:"ble_timeout"`

	// BTTimeout is the per-device directed query timeout in seconds.
	BTTimeout int `yaml:"bt_timeout"`

	// ScanInterval is the target cycle interval in seconds.
	ScanInterval int `yaml:"scan_interval"`

	// DecayStep is subtracted from a device's confidence on every missed cycle.
	DecayStep int `yaml:"decay_step"`

	// BTTool is the path to the hcitool binary used for directed queries.
	BTTool string `yaml:"bt_tool"`

	// Workers bounds concurrent directed queries. 1 keeps queries serial.
	Workers int `yaml:"workers"`

	// AutoPin allows bt_type "auto": the device is pinned to the first
	// transport that detects it.
	AutoPin bool `yaml:"auto_pin"`
}

// DeviceConfig is one watched device entry.
type DeviceConfig struct {
	Name   string `yaml:"name"`
	BTType string `yaml:"bt_type"`
	MAC    string `yaml:"mac"`
	UUID   string `yaml:"uuid"`
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

// APIConfig contains the status HTTP server settings.
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

// defaultRoom is used when the room key is missing or empty.
const defaultRoom = "room"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
// For example: PRESENCE_MQTT_HOST, PRESENCE_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

	if cfg.Room == "" {
		cfg.Room = defaultRoom
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Room: defaultRoom,
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:       0,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				Attempts: 3,
				Delay:    10,
			},
		},
		Topics: TopicsConfig{
			OwnerPrefix:    "location/owner",
			PresencePrefix: "location",
		},
		Scan: ScanConfig{
			BLETimeout:   10,
			BTTimeout:    6,
			ScanInterval: 20,
			DecayStep:    5,
			BTTool:       "/usr/bin/hcitool",
			Workers:      1,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
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
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_ROOM"); v != "" {
		cfg.Room = v
	}

	// MQTT
	if v := os.Getenv("PRESENCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PRESENCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PRESENCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("PRESENCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a broken file is reported in one pass,
// including per-device problems that would otherwise surface as silent
// no-matches at runtime.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Room == "" {
		errs = append(errs, "room is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Attempts < 1 {
		errs = append(errs, "mqtt.reconnect.attempts must be at least 1")
	}
	if c.MQTT.Reconnect.Delay < 0 {
		errs = append(errs, "mqtt.reconnect.delay must not be negative")
	}

	if c.Topics.OwnerPrefix == "" || c.Topics.PresencePrefix == "" {
		errs = append(errs, "topics.owner_prefix and topics.presence_prefix are required")
	}

	// Scan validation
	if c.Scan.BLETimeout < 1 {
		errs = append(errs, "scan.ble_timeout must be at least 1 second")
	}
	if c.Scan.BTTimeout < 1 {
		errs = append(errs, "scan.bt_timeout must be at least 1 second")
	}
	if c.Scan.ScanInterval < 0 {
		errs = append(errs, "scan.scan_interval must not be negative")
	}
	if c.Scan.DecayStep < 1 || c.Scan.DecayStep > 100 {
		errs = append(errs, "scan.decay_step must be between 1 and 100")
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, "scan.workers must be at least 1")
	}

	errs = append(errs, c.validateDevices()...)

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateDevices checks the devices list entry by entry.
func (c *Config) validateDevices() []string {
	var errs []string

	if len(c.Devices) == 0 {
		errs = append(errs, "devices: at least one device is required")
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		if d.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else {
			if _, dup := seen[d.Name]; dup {
				errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, d.Name))
			}
			seen[d.Name] = struct{}{}
		}

		if d.UUID != "" && !validIdentifier(d.UUID) {
			errs = append(errs, fmt.Sprintf("%s.uuid %q must be an even number of hex digits", prefix, d.UUID))
		}

		switch NormalizeBTType(d.BTType) {
		case BTTypeBT:
			if d.MAC == "" {
				errs = append(errs, prefix+".mac is required for bt_type bt")
			}
		case BTTypeBLE:
			if d.MAC == "" && d.UUID == "" {
				errs = append(errs, prefix+": bt_type ble needs a mac or a uuid")
			}
		case BTTypeAuto:
			if !c.Scan.AutoPin {
				errs = append(errs, prefix+": bt_type auto requires scan.auto_pin")
			}
			if d.MAC == "" {
				errs = append(errs, prefix+".mac is required for bt_type auto")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.bt_type %q must be ble, bt or auto", prefix, d.BTType))
		}
	}

	return errs
}

// NormalizeBTType trims and lower-cases a bt_type token.
func NormalizeBTType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validIdentifier reports whether a uuid, once separators are dropped, is
// an even number of hex digits.
func validIdentifier(s string) bool {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			n++
		case c >= 'g' && c <= 'z', c >= 'G' && c <= 'Z':
			return false
		}
	}
	return n > 0 && n%2 == 0
}

// BLEScanDuration returns the broadcast scan duration.
func (c *Config) BLEScanDuration() time.Duration {
	return time.Duration(c.Scan.BLETimeout) * time.Second
}

// BTQueryTimeout returns the per-device directed query timeout.
func (c *Config) BTQueryTimeout() time.Duration {
	return time.Duration(c.Scan.BTTimeout) * time.Second
}

// CycleInterval returns the target cycle interval.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Scan.ScanInterval) * time.Second
}

// ReconnectDelay returns the pause between sink reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.Delay) * time.Second
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
