package config

// Configuration loading and validation for brushrig

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/brushrig/internal/errors"
)

// NoBrush is the sentinel brush value meaning "row not configured".
const NoBrush = "none"

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "brushrig.yaml"

// DeviceConfig describes the rig controller endpoint.
type DeviceConfig struct {
	URL            string `yaml:"url"`
	DialTimeoutMs  int    `yaml:"dial_timeout_ms,omitempty"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms,omitempty"`
}

// ReconnectConfig controls automatic reconnection after a lost connection.
type ReconnectConfig struct {
	DelayMs     int `yaml:"delay_ms"`
	MaxAttempts int `yaml:"max_attempts"` // 0 = unbounded
}

// PanelConfig controls the control panel layout and behavior.
type PanelConfig struct {
	Rows    int      `yaml:"rows"`
	Brushes []string `yaml:"brushes"`
	Offline bool     `yaml:"offline,omitempty"` // save presets locally without transmitting
	ToastMs int      `yaml:"toast_ms,omitempty"`
}

// StoreConfig locates the preset file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log formatting and verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // "silent","error","info","verbose","debug"
	Format string `yaml:"format,omitempty"` // "text" or "json"
	File   string `yaml:"file,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint and the message logs.
type MetricsConfig struct {
	Listen      string `yaml:"listen,omitempty"`       // e.g. "127.0.0.1:9110"; empty disables
	MessageLog  string `yaml:"message_log,omitempty"`  // CSV file of every frame; empty disables
	MessageJSON string `yaml:"message_json,omitempty"` // JSON array of every frame; empty disables
}

// MQTTConfig controls the optional MQTT mirror of rig traffic.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// EmulatorConfig controls `brushrig emulate`.
type EmulatorConfig struct {
	Listen       string `yaml:"listen,omitempty"`
	Path         string `yaml:"path,omitempty"`
	ReplyDelayMs int    `yaml:"reply_delay_ms,omitempty"`
}

// Config represents the brushrig configuration
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Panel     PanelConfig     `yaml:"panel"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	MQTT      MQTTConfig      `yaml:"mqtt,omitempty"`
	Emulator  EmulatorConfig  `yaml:"emulator,omitempty"`
}

// CreateDefaultConfig creates a default configuration
func CreateDefaultConfig() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			URL: "ws://localhost:8080/ws",
		},
		Reconnect: ReconnectConfig{
			DelayMs:     3000,
			MaxAttempts: 5,
		},
		Panel: PanelConfig{
			Rows:    4,
			Brushes: []string{"B1", "B2", "B3", "B4"},
		},
		Store: StoreConfig{
			Path: "presets.json",
		},
	}
	applyDefaults(cfg)
	return cfg
}

// WriteConfig writes a configuration to a YAML file
func WriteConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Load loads a configuration from a YAML file. A missing file yields the
// defaults unless required is true.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
		if required {
			return nil, errors.WrapConfigError(
				fmt.Errorf("config file not found: %s", path),
				path,
			)
		}
		return CreateDefaultConfig(), nil
	}

	cfg := CreateDefaultConfig()
	// Fields absent from the file keep their defaults; an explicit empty
	// brushes list is treated as absent.
	cfg.Panel.Brushes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Device.URL == "" {
		cfg.Device.URL = "ws://localhost:8080/ws"
	}
	if cfg.Device.DialTimeoutMs == 0 {
		cfg.Device.DialTimeoutMs = 5000
	}
	if cfg.Device.WriteTimeoutMs == 0 {
		cfg.Device.WriteTimeoutMs = 2000
	}
	if cfg.Reconnect.DelayMs == 0 {
		cfg.Reconnect.DelayMs = 3000
	}
	if cfg.Panel.Rows == 0 {
		cfg.Panel.Rows = 4
	}
	if len(cfg.Panel.Brushes) == 0 {
		cfg.Panel.Brushes = []string{"B1", "B2", "B3", "B4"}
	}
	if cfg.Panel.ToastMs == 0 {
		cfg.Panel.ToastMs = 3000
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "presets.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "brushrig"
	}
	if cfg.Emulator.Listen == "" {
		cfg.Emulator.Listen = ":8080"
	}
	if cfg.Emulator.Path == "" {
		cfg.Emulator.Path = "/ws"
	}
}

// Validate validates a configuration
func Validate(cfg *Config) error {
	if err := validateURL(cfg.Device.URL); err != nil {
		return err
	}
	if cfg.Device.DialTimeoutMs < 0 || cfg.Device.WriteTimeoutMs < 0 {
		return fmt.Errorf("device timeouts must be >= 0")
	}
	if cfg.Reconnect.DelayMs < 0 {
		return fmt.Errorf("reconnect.delay_ms must be >= 0")
	}
	if cfg.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0 (0 = unbounded)")
	}
	if cfg.Panel.Rows < 1 || cfg.Panel.Rows > 16 {
		return fmt.Errorf("panel.rows must be between 1 and 16, got %d", cfg.Panel.Rows)
	}
	seen := make(map[string]bool)
	for i, brush := range cfg.Panel.Brushes {
		name := strings.TrimSpace(brush)
		if name == "" {
			return fmt.Errorf("panel.brushes[%d]: name is required", i)
		}
		if name == NoBrush {
			return fmt.Errorf("panel.brushes[%d]: %q is reserved", i, NoBrush)
		}
		if seen[name] {
			return fmt.Errorf("panel.brushes[%d]: duplicate brush %q", i, name)
		}
		seen[name] = true
	}
	if cfg.Panel.ToastMs < 0 {
		return fmt.Errorf("panel.toast_ms must be >= 0")
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if format := strings.ToLower(cfg.Logging.Format); format != "text" && format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if !strings.HasPrefix(cfg.Emulator.Path, "/") {
		return fmt.Errorf("emulator.path must start with /")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("device.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("device.url must use ws:// or wss://, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("device.url has no host: %q", raw)
	}
	return nil
}

// BrushOptions returns the selector options for a row, sentinel first.
func (c *Config) BrushOptions() []string {
	opts := make([]string, 0, len(c.Panel.Brushes)+1)
	opts = append(opts, NoBrush)
	for _, b := range c.Panel.Brushes {
		opts = append(opts, strings.TrimSpace(b))
	}
	return opts
}

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.DelayMs) * time.Millisecond
}

// DialTimeout returns the WebSocket handshake timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Device.DialTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the per-frame write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Device.WriteTimeoutMs) * time.Millisecond
}

// ToastDuration returns how long a notice stays visible.
func (c *Config) ToastDuration() time.Duration {
	return time.Duration(c.Panel.ToastMs) * time.Millisecond
}
