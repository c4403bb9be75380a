// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/razorlink"
)

var (
	rawLogValidate bool
	rawLogHex      bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display link frames in human-readable format",
	Long: `Continuously decode and display razor link frames as they arrive.

Each frame is shown with timestamp, message type, address and decoded
payload. With --validate, anomalies such as counter overflow or implausible
temperatures are listed under the frame.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogValidate, "validate", false, "Check frames for anomalies")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print the raw CBOR payload of each frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	link, conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Razor - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := razorlink.NewStatistics()
	err = link.Receive(func(p *razorlink.Packet, err error) bool {
		if err != nil {
			stats.Update(err, nil)
			fmt.Printf("[ERROR] %v\n", err)
			return true
		}

		fmt.Print(razorlink.FormatPacket(p))
		if rawLogHex {
			fmt.Printf("  CBOR: % X\n", p.Payload())
		}
		var anomalies []razorlink.ValidationError
		if rawLogValidate {
			anomalies = razorlink.ValidatePacket(p)
			for _, a := range anomalies {
				fmt.Printf("  [ANOMALY] %s\n", a.Message)
			}
		}
		stats.Update(nil, anomalies)
		return true
	})

	fmt.Print("\n" + stats.String())
	if err != nil && !isClosed(err) {
		return err
	}
	log.Printf("Connection closed")
	return nil
}
