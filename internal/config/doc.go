// Package config provides user configuration management for the wccp tools.
//
// The configuration file stores defaults for the packet source, the live
// monitor, CSV export, the websocket relay and logging, plus user-defined
// labels for units and components. Command-line flags always win over file
// values.
//
// # Configuration File Location
//
// The default file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wccp/config.yaml or $HOME/.config/wccp/config.yaml
//   - macOS: $HOME/.config/wccp/config.yaml
//   - Windows: %LOCALAPPDATA%\wccp\config.yaml
//
// An explicit path may be given instead; paths ending in .toml are read and
// written as TOML.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg.SetUnitName(0x22, "nose cone")
//	cfg.SetComponentName(0x22, 0x11, "imu")
//	if err := cfg.SaveDefault(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Load is safe for concurrent use and returns a shared instance. Save
// serializes writers; the returned *Config itself is not synchronized.
package config
