// Wccp is a toolkit for the wccp command/telemetry protocol.
//
// It decodes framed captures and record logs, watches a live serial link in
// an interactive dashboard, relays packets to websocket clients, exports
// packet series to CSV and builds packets to send.
//
// Usage:
//
//	wccp [command] [flags]
//
// See 'wccp --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/config"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wccp",
	Short: "wccp protocol toolkit",
	Long: `Tools for the wccp command/telemetry protocol.

Packets are read from a serial device or a capture file, decoded, and shown
in the terminal, relayed to websocket clients or exported to CSV.

Settings are read from $XDG_CONFIG_HOME/wccp/config.yaml when it exists.
Command-line flags override the file.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")

	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	return logging.InitializeWithOptions(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		// The monitor owns the terminal.
		Quiet: cmd.Name() == "monitor",
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "wccp %s %s %s\n", version.Full(), info.GoVersion, info.Platform)
	},
}
