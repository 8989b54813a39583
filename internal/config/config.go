package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/picoremote/internal/ble"
)

// MaxCommands is the most command buttons a config may define; one hotkey
// digit per command.
const MaxCommands = 9

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig    `yaml:"device"`
	Commands []CommandConfig `yaml:"commands"`
	UI       UIConfig        `yaml:"ui"`
	Hotkey   HotkeyConfig    `yaml:"hotkey"`
	LogLevel string          `yaml:"log_level"`
}

// DeviceConfig identifies the peripheral and its command service.
type DeviceConfig struct {
	Name        string `yaml:"name"`         // advertised name, matched exactly
	ServiceUUID string `yaml:"service_uuid"` // service holding the command characteristics
}

// CommandConfig is one command button.
type CommandConfig struct {
	UUID    string `yaml:"uuid"`
	Label   string `yaml:"label,omitempty"` // defaults to "Send Command N"
	Payload string `yaml:"payload"`         // written verbatim
}

// UIConfig holds window settings.
type UIConfig struct {
	Title string `yaml:"title"`
}

// HotkeyConfig holds global hotkey settings. Command N is bound to the
// modifiers plus the digit N.
type HotkeyConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Modifiers []string `yaml:"modifiers"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "picoremote")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config for a Pico W running the LED command firmware.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:        "PicoLEDs",
			ServiceUUID: "12345678-1234-5678-1234-56789abcdef0",
		},
		Commands: []CommandConfig{
			{UUID: "12345678-1234-5678-1234-56789abcdef1", Payload: "1"},
			{UUID: "12345678-1234-5678-1234-56789abcdef2", Payload: "1"},
			{UUID: "12345678-1234-5678-1234-56789abcdef3", Payload: "1"},
			{UUID: "12345678-1234-5678-1234-56789abcdef4", Payload: "1"},
			{UUID: "12345678-1234-5678-1234-56789abcdef5", Payload: "1"},
		},
		UI: UIConfig{
			Title: "Raspberry Pi Pico W Bluetooth Commands",
		},
		Hotkey: HotkeyConfig{
			Enabled:   false,
			Modifiers: []string{"ctrl", "shift"},
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A commands list in the file replaces the default list.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	defaultCommands := cfg.Commands
	cfg.Commands = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Commands == nil {
		cfg.Commands = defaultCommands
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}

	if _, err := ble.NormalizeUUID(c.Device.ServiceUUID); err != nil {
		return fmt.Errorf("device.service_uuid %q is not a valid UUID", c.Device.ServiceUUID)
	}

	if len(c.Commands) == 0 {
		return fmt.Errorf("commands must not be empty")
	}
	if len(c.Commands) > MaxCommands {
		return fmt.Errorf("commands supports at most %d entries, got %d", MaxCommands, len(c.Commands))
	}

	seen := make(map[string]int, len(c.Commands))
	for i, cmd := range c.Commands {
		key, err := ble.NormalizeUUID(cmd.UUID)
		if err != nil {
			return fmt.Errorf("commands[%d].uuid %q is not a valid UUID", i, cmd.UUID)
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("commands[%d].uuid duplicates commands[%d]", i, prev)
		}
		seen[key] = i
		if cmd.Payload == "" {
			return fmt.Errorf("commands[%d].payload must not be empty", i)
		}
	}

	if c.Hotkey.Enabled && len(c.Hotkey.Modifiers) == 0 {
		return fmt.Errorf("hotkey.modifiers must not be empty when hotkeys are enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// Labels returns the button label of each command.
func (c *Config) Labels() []string {
	labels := make([]string, len(c.Commands))
	for i, cmd := range c.Commands {
		labels[i] = cmd.Label
		if labels[i] == "" {
			labels[i] = fmt.Sprintf("Send Command %d", i+1)
		}
	}
	return labels
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// map to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# picoremote configuration
#
# device.name must match the advertised name exactly. Each command is one
# button; its payload is written to the characteristic with an acknowledged
# write. With hotkey.enabled, modifiers+N sends command N.
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the path written, or "" if a file already existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(defaultHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
