// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/Thermoquad/razor/pkg/watercut"
)

// Instrument configuration file, searched as razor.{yaml,toml,json}
const configName = "razor"

var configPaths = []string{"/etc/razor", "."}

// loadConfig reads the instrument configuration under the "watercut" key and
// the snapshot path under "state". Without a file the defaults are used and
// a warning is logged. Returns the file used, or "" for defaults.
func loadConfig() (watercut.Config, string, error) {
	cfg := watercut.DefaultConfig()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}
	v.SetDefault("state", statePath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return cfg, "", fmt.Errorf("read config: %w", err)
		}
		log.Printf("No %s config found in %v, using defaults", configName, configPaths)
		return cfg, "", nil
	}

	if err := v.UnmarshalKey("watercut", &cfg); err != nil {
		return cfg, "", fmt.Errorf("%s: %w", v.ConfigFileUsed(), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, "", fmt.Errorf("%s: %w", v.ConfigFileUsed(), err)
	}
	if !rootCmd.PersistentFlags().Changed("state") {
		statePath = v.GetString("state")
	}
	return cfg, v.ConfigFileUsed(), nil
}

// fileConfig is the layout of razor.yaml
type fileConfig struct {
	State    string          `yaml:"state"`
	Watercut watercut.Config `yaml:"watercut"`
}

const configHeader = `# Razor instrument configuration.
#
# state: snapshot file holding the register block between runs.
# watercut: frequencies in MHz, temperatures in °C, densities in kg/m³,
# reflected power in mV. density_source is 0 analog, 1 modbus, 2 manual;
# ao_fail_mode is 0 hold, 1 high, 2 low. curves holds three low curves
# followed by three high curves, one per temps_oil breakpoint, as cubic
# coefficients highest power first.
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the instrument configuration file",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s exists (use --force to overwrite)", path)
		}

		data, err := yaml.Marshal(fileConfig{State: defaultStatePath, Watercut: watercut.DefaultConfig()})
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := loadConfig()
		if err != nil {
			return err
		}
		if used == "" {
			used = "defaults"
		}
		data, err := yaml.Marshal(fileConfig{State: statePath, Watercut: cfg})
		if err != nil {
			return err
		}
		fmt.Printf("# from %s\n%s", used, data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")
}
