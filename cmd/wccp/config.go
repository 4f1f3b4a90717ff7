package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/config"
	"github.com/muurk/wccp/internal/ui"
)

var (
	configTOML  bool
	configForce bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd, configLabelCmd)

	configShowCmd.Flags().BoolVar(&configTOML, "toml", false, "Print as TOML")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the wccp configuration file. The file is YAML unless its name ends
in .toml. --config selects a file other than the default.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Marshal(configTOML)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.NewConfig().Save(path); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration written",
			ui.Detail{Key: "Path", Value: path})
		return nil
	},
}

var configLabelCmd = &cobra.Command{
	Use:   "label <unit> [component] <name>",
	Short: "Name a unit or component",
	Long: `Name a unit, or a component of a unit. The monitor shows these names next
to the addresses in its packet tree.`,
	Example: `  # Name unit 0x22
  wccp config label 0x22 rover

  # Name component 0x11 of the local unit
  wccp config label 0 0x11 imu`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseAddress("unit", args[0])
		if err != nil {
			return err
		}
		name := args[len(args)-1]

		detail := ui.Detail{Key: "Unit", Value: fmt.Sprintf("0x%02x", unit)}
		if len(args) == 3 {
			component, err := parseAddress("component", args[1])
			if err != nil {
				return err
			}
			cfg.SetComponentName(unit, component, name)
			detail = ui.Detail{Key: "Component", Value: fmt.Sprintf("0x%02x/0x%02x", unit, component)}
		} else {
			cfg.SetUnitName(unit, name)
		}

		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		if configPath == "" {
			err = cfg.SaveDefault()
		} else {
			err = cfg.Save(path)
		}
		if err != nil {
			return err
		}

		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Label saved",
			detail,
			ui.Detail{Key: "Name", Value: strconv.Quote(name)},
			ui.Detail{Key: "Path", Value: path},
		)
		return nil
	},
}

// targetConfigPath is the --config file, or the default location.
func targetConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
