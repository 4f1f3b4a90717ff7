package config

import (
	"strconv"
	"time"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// Config represents the entire user configuration file.
type Config struct {
	Version int              `yaml:"version" toml:"version"`
	Source  SourceConfig     `yaml:"source" toml:"source"`
	Monitor MonitorConfig    `yaml:"monitor" toml:"monitor"`
	Export  ExportConfig     `yaml:"export" toml:"export"`
	Relay   RelayConfig      `yaml:"relay" toml:"relay"`
	Log     LogConfig        `yaml:"log" toml:"log"`
	Units   map[string]*Unit `yaml:"units,omitempty" toml:"units,omitempty"` // Keyed by decimal unit id
}

// SourceConfig selects where packets are read from.
type SourceConfig struct {
	Port      string `yaml:"port,omitempty" toml:"port,omitempty"`       // Serial device, e.g. /dev/ttyUSB0
	File      string `yaml:"file,omitempty" toml:"file,omitempty"`       // Framed capture file
	Capture   string `yaml:"capture,omitempty" toml:"capture,omitempty"` // Tee raw input to this file
	Baud      int    `yaml:"baud" toml:"baud"`                           // Serial line speed
	ChunkSize int    `yaml:"chunk_size" toml:"chunk_size"`               // Read size in bytes
}

// MonitorConfig controls the live dashboard.
type MonitorConfig struct {
	RefreshMillis   int    `yaml:"refresh_ms" toml:"refresh_ms"`
	HighlightMillis int    `yaml:"highlight_ms" toml:"highlight_ms"`         // How long a fresh arrival stays highlighted
	Filter          string `yaml:"filter,omitempty" toml:"filter,omitempty"` // Packet id characters to show, empty = all
	HistoryLimit    int    `yaml:"history_limit" toml:"history_limit"`       // Packets kept per series, 0 = unbounded
}

// ExportConfig controls CSV export.
type ExportConfig struct {
	Directory string `yaml:"directory" toml:"directory"`
}

// RelayConfig controls the websocket relay.
type RelayConfig struct {
	Listen    string `yaml:"listen" toml:"listen"`
	Advertise bool   `yaml:"advertise" toml:"advertise"` // Announce the relay over mDNS
	Instance  string `yaml:"instance,omitempty" toml:"instance,omitempty"`
}

// LogConfig mirrors logging.Options.
type LogConfig struct {
	Level      string `yaml:"level,omitempty" toml:"level,omitempty"`
	File       string `yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" toml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" toml:"max_backups,omitempty"`
}

// Unit holds user-defined labels for a unit and its components.
type Unit struct {
	Name       string            `yaml:"name,omitempty" toml:"name,omitempty"`
	Components map[string]string `yaml:"components,omitempty" toml:"components,omitempty"` // Keyed by decimal component id
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Source: SourceConfig{
			Baud:      115200,
			ChunkSize: 512,
		},
		Monitor: MonitorConfig{
			RefreshMillis:   100,
			HighlightMillis: 200,
			HistoryLimit:    10000,
		},
		Export: ExportConfig{
			Directory: ".",
		},
		Relay: RelayConfig{
			Listen: ":8420",
		},
		Units: make(map[string]*Unit),
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := NewConfig()
	if c.Source.Baud <= 0 {
		c.Source.Baud = def.Source.Baud
	}
	if c.Source.ChunkSize <= 0 {
		c.Source.ChunkSize = def.Source.ChunkSize
	}
	if c.Monitor.RefreshMillis <= 0 {
		c.Monitor.RefreshMillis = def.Monitor.RefreshMillis
	}
	if c.Monitor.HighlightMillis <= 0 {
		c.Monitor.HighlightMillis = def.Monitor.HighlightMillis
	}
	if c.Export.Directory == "" {
		c.Export.Directory = def.Export.Directory
	}
	if c.Relay.Listen == "" {
		c.Relay.Listen = def.Relay.Listen
	}
	if c.Units == nil {
		c.Units = make(map[string]*Unit)
	}
}

// RefreshInterval returns the monitor refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Monitor.RefreshMillis) * time.Millisecond
}

// HighlightDuration returns how long new arrivals are highlighted.
func (c *Config) HighlightDuration() time.Duration {
	return time.Duration(c.Monitor.HighlightMillis) * time.Millisecond
}

// EnsureUnit returns the label entry for a unit, creating it if needed.
func (c *Config) EnsureUnit(unit uint8) *Unit {
	if c.Units == nil {
		c.Units = make(map[string]*Unit)
	}
	key := strconv.Itoa(int(unit))
	if u, ok := c.Units[key]; ok {
		return u
	}
	u := &Unit{Components: make(map[string]string)}
	c.Units[key] = u
	return u
}

// SetUnitName labels a unit.
func (c *Config) SetUnitName(unit uint8, name string) {
	c.EnsureUnit(unit).Name = name
}

// SetComponentName labels a component of a unit.
func (c *Config) SetComponentName(unit, component uint8, name string) {
	u := c.EnsureUnit(unit)
	if u.Components == nil {
		u.Components = make(map[string]string)
	}
	u.Components[strconv.Itoa(int(component))] = name
}

// UnitLabel returns the configured name of a unit, or "" if none.
func (c *Config) UnitLabel(unit uint8) string {
	if u, ok := c.Units[strconv.Itoa(int(unit))]; ok {
		return u.Name
	}
	return ""
}

// ComponentLabel returns the configured name of a component, or "" if none.
func (c *Config) ComponentLabel(unit, component uint8) string {
	if u, ok := c.Units[strconv.Itoa(int(unit))]; ok {
		return u.Components[strconv.Itoa(int(component))]
	}
	return ""
}
