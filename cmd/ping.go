// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/razorlink"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING_REQUEST to an analyzer and wait for PING_RESPONSE",
	Long: `Send PING_REQUEST frames over the link and wait for PING_RESPONSE.

This verifies the connection, authentication (WebSocket) and that an
analyzer started with 'razor run' is answering. The response carries the
analyzer uptime.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	link, conn, connInfo, err := OpenLink()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Razor - Link Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	responses := make(chan *razorlink.Packet, 1)
	readErr := make(chan error, 1)
	go func() {
		readErr <- link.Receive(func(p *razorlink.Packet, err error) bool {
			if err == nil && p.Type() == razorlink.MsgPingResponse {
				select {
				case responses <- p:
				default:
				}
			}
			return true
		})
	}()

	successCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		if err := link.Send(razorlink.NewPingRequest(link.Address())); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			continue
		}

		select {
		case p := <-responses:
			uptime, _ := razorlink.GetMapUint(p.PayloadMap(), 0)
			fmt.Printf("PONG from %016X, uptime=%s, rtt=%v\n",
				p.Address(), time.Duration(uptime)*time.Millisecond, time.Since(start).Round(time.Millisecond))
			successCount++

		case err := <-readErr:
			if err == nil {
				err = ErrConnectionClosed
			}
			fmt.Printf("READ FAILED: %v\n", err)
			i = pingCount

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
