package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
		configDir, err := GetConfigDir()
		if err != nil {
			t.Fatalf("GetConfigDir() error = %v", err)
		}
		if configDir != filepath.Join("/tmp/xdg-test", "wccp") {
			t.Errorf("GetConfigDir() = %v, want /tmp/xdg-test/wccp", configDir)
		}
	}

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %v, want %v", cfg.Version, CurrentVersion)
	}
	if cfg.RefreshInterval() != 100*time.Millisecond {
		t.Errorf("RefreshInterval() = %v, want 100ms", cfg.RefreshInterval())
	}
	if cfg.HighlightDuration() != 200*time.Millisecond {
		t.Errorf("HighlightDuration() = %v, want 200ms", cfg.HighlightDuration())
	}
	if cfg.Relay.Listen != ":8420" {
		t.Errorf("Relay.Listen = %q, want :8420", cfg.Relay.Listen)
	}
	if cfg.Units == nil {
		t.Error("Units should not be nil")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		toml    bool
		wantErr error
		verify  func(t *testing.T, cfg *Config)
	}{
		{
			name: "yaml partial file keeps defaults",
			data: "version: 1\nsource:\n  port: /dev/ttyUSB0\nmonitor:\n  filter: AB\n",
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Source.Port != "/dev/ttyUSB0" {
					t.Errorf("Source.Port = %q", cfg.Source.Port)
				}
				if cfg.Monitor.Filter != "AB" {
					t.Errorf("Monitor.Filter = %q", cfg.Monitor.Filter)
				}
				if cfg.Source.ChunkSize != 512 {
					t.Errorf("Source.ChunkSize = %d, want default 512", cfg.Source.ChunkSize)
				}
				if cfg.Source.Baud != 115200 {
					t.Errorf("Source.Baud = %d, want default 115200", cfg.Source.Baud)
				}
			},
		},
		{
			name: "yaml baud override",
			data: "source:\n  port: /dev/ttyACM0\n  baud: 57600\n",
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Source.Baud != 57600 {
					t.Errorf("Source.Baud = %d, want 57600", cfg.Source.Baud)
				}
			},
		},
		{
			name: "yaml without version",
			data: "relay:\n  listen: 127.0.0.1:9000\n  advertise: true\n",
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Version != CurrentVersion {
					t.Errorf("Version = %d", cfg.Version)
				}
				if cfg.Relay.Listen != "127.0.0.1:9000" || !cfg.Relay.Advertise {
					t.Errorf("Relay = %+v", cfg.Relay)
				}
			},
		},
		{
			name: "toml with unit labels",
			toml: true,
			data: "version = 1\n[log]\nlevel = \"debug\"\n[units.34]\nname = \"nose\"\n[units.34.components]\n17 = \"imu\"\n",
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Log.Level != "debug" {
					t.Errorf("Log.Level = %q", cfg.Log.Level)
				}
				if cfg.UnitLabel(34) != "nose" {
					t.Errorf("UnitLabel(34) = %q", cfg.UnitLabel(34))
				}
				if cfg.ComponentLabel(34, 17) != "imu" {
					t.Errorf("ComponentLabel(34, 17) = %q", cfg.ComponentLabel(34, 17))
				}
			},
		},
		{
			name:    "future version",
			data:    "version: 2\n",
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "invalid yaml",
			data:    "source: [",
			wantErr: errors.New("any"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), tt.toml)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("Parse() error = nil")
				}
				if errors.Is(tt.wantErr, ErrUnsupportedVersion) && !errors.Is(err, ErrUnsupportedVersion) {
					t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.verify(t, cfg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := NewConfig()
			cfg.Source.Port = "/dev/ttyACM0"
			cfg.Export.Directory = "/tmp/exports"
			cfg.SetUnitName(0x22, "Test Unit")
			cfg.SetComponentName(0x22, 0x11, "Test Component")

			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temporary file left behind")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(string(data), "# wccp configuration file") {
				t.Error("saved file is missing the header comment")
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if loaded.Source.Port != "/dev/ttyACM0" {
				t.Errorf("Source.Port = %q", loaded.Source.Port)
			}
			if loaded.Export.Directory != "/tmp/exports" {
				t.Errorf("Export.Directory = %q", loaded.Export.Directory)
			}
			if loaded.UnitLabel(0x22) != "Test Unit" {
				t.Errorf("UnitLabel = %q", loaded.UnitLabel(0x22))
			}
			if loaded.ComponentLabel(0x22, 0x11) != "Test Component" {
				t.Errorf("ComponentLabel = %q", loaded.ComponentLabel(0x22, 0x11))
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if cfg.Relay.Listen != NewConfig().Relay.Listen {
		t.Errorf("Relay.Listen = %q, want default", cfg.Relay.Listen)
	}
}

func TestLabels_Unknown(t *testing.T) {
	cfg := NewConfig()
	if cfg.UnitLabel(5) != "" || cfg.ComponentLabel(5, 1) != "" {
		t.Error("labels for unknown unit should be empty")
	}
}
