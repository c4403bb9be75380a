// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/razorlink"
	"github.com/Thermoquad/razor/pkg/store"
	"github.com/Thermoquad/razor/pkg/watercut"
)

var (
	calibrateOffline bool
	calibrateTimeout int
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <reference-watercut>",
	Short: "Set the oil adjust from a laboratory watercut",
	Long: `Calibrate the oil adjust so the analyzer reads the reference watercut.

By default CALIBRATE_OIL is sent to a running analyzer over the link and
the new OIL_ADJUST is printed from its REGISTER_VALUE answer.

With --offline the saved snapshot at --state is calibrated in place. The
saved averages are used as the measured value. Density correction is not
counted offline since the applied adjustment is not part of the snapshot.

Calibration is refused while the water phase is latched.`,
	Example: `  razor calibrate 12.5 --port /dev/ttyUSB0
  razor calibrate 12.5 --offline --state /var/lib/razor/razor.snap`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().BoolVar(&calibrateOffline, "offline", false, "Calibrate the saved snapshot instead of a live analyzer")
	calibrateCmd.Flags().IntVar(&calibrateTimeout, "timeout", 5, "Timeout in seconds waiting for the answer")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	reference, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid reference %q: %w", args[0], err)
	}
	if reference < 0 || reference > watercut.MaxWaterPhase {
		return fmt.Errorf("reference watercut %g outside 0..%g", reference, watercut.MaxWaterPhase)
	}

	if calibrateOffline {
		return calibrateSnapshot(reference)
	}
	return calibrateLink(reference)
}

func calibrateSnapshot(reference float64) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	bank, err := watercut.New(cfg)
	if err != nil {
		return err
	}
	st := store.New(statePath)
	if err := st.Restore(bank); err != nil {
		return fmt.Errorf("%s: %w", st.Path(), err)
	}

	snap := bank.TakeStreamSnapshot(time.Now())
	snap.DensityCorrected = false

	prev := bank.Config.OilAdjust
	adj, err := bank.CalibrateOil(reference, &snap)
	if err != nil {
		return err
	}
	if err := st.Save(bank.Snapshot()); err != nil {
		return err
	}

	fmt.Printf("Snapshot:   %s\n", st.Path())
	fmt.Printf("Reference:  %.3f %%\n", reference)
	fmt.Printf("Oil adjust: %.4f (was %.4f)\n", adj, prev)
	return nil
}

func calibrateLink(reference float64) error {
	link, conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	answers := make(chan *razorlink.Packet, 1)
	go link.Receive(func(p *razorlink.Packet, err error) bool {
		if err != nil {
			return true
		}
		switch p.Type() {
		case razorlink.MsgRegisterValue, razorlink.MsgErrorInvalidCmd:
			answers <- p
			return false
		}
		return true
	})

	if err := link.Send(razorlink.NewCalibrateOil(link.Address(), reference)); err != nil {
		return err
	}

	select {
	case p := <-answers:
		if p.Type() == razorlink.MsgErrorInvalidCmd {
			return fmt.Errorf("analyzer refused calibration: %s", razorlink.FormatPacket(p))
		}
		reg, adj, err := razorlink.RegisterFromPacket(p)
		if err != nil {
			return err
		}
		if reg != watercut.RegOilAdjust {
			fmt.Fprintf(os.Stderr, "Warning: answer for register %d\n", reg)
		}
		fmt.Printf("Reference:  %.3f %%\n", reference)
		fmt.Printf("Oil adjust: %.4f\n", adj)
		return nil
	case <-time.After(time.Duration(calibrateTimeout) * time.Second):
		return fmt.Errorf("no answer within %ds", calibrateTimeout)
	}
}
