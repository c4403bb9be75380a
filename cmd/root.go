// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Instrument configuration
	configFile string
	statePath  string
	linkAddr   uint64
)

const defaultStatePath = "razor.snap"

var rootCmd = &cobra.Command{
	Use:   "razor",
	Short: "Razor watercut analyzer",
	Long: `Razor - watercut analyzer core and link tools.

Runs the watercut pipeline against pulse captures from a front end, and
provides offline tools for unit conversion, API density correction, curve
simulation and oil calibration.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the RAZOR_PASSWORD
environment variable, or prompted interactively if not set.

The instrument configuration is read from --config, or razor.yaml in
/etc/razor or the working directory.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Instrument configuration file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", defaultStatePath, "Register snapshot file")
	rootCmd.PersistentFlags().Uint64Var(&linkAddr, "address", 0, "Link address of the analyzer (0 = broadcast)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
