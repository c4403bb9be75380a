// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/razorlink"
	"github.com/Thermoquad/razor/pkg/store"
	"github.com/Thermoquad/razor/pkg/watercut"
)

var (
	runVerbose     bool
	runNoTelemetry bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watercut analyzer on a link",
	Long: `Run the watercut analyzer against a front end on the link.

Every PULSE_CAPTURE frame is one pipeline cycle and is answered with a
TELEMETRY frame. Register reads and writes, save requests, oil calibration
and pings are served from the same link. Captures are sampled into the
moving averages once per second.

The register snapshot is restored from --state at start, and written back
whenever the configuration changes and on exit.`,
	RunE: runAnalyzer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log decode errors and every request")
	runCmd.Flags().BoolVar(&runNoTelemetry, "no-telemetry", false, "Do not send TELEMETRY after each cycle")
}

// server answers link requests for one analyzer
type server struct {
	analyzer *watercut.Analyzer
	link     *razorlink.Link
	store    *store.Store
	logger   *log.Logger
	started  time.Time
}

func runAnalyzer(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "razor: ", log.LstdFlags)

	cfg, cfgFile, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		logger.Printf("Configuration: %s", cfgFile)
	}

	bank, err := watercut.New(cfg)
	if err != nil {
		return err
	}
	st := store.New(statePath)
	switch err := st.Restore(bank); {
	case err == nil:
		logger.Printf("Restored snapshot from %s", st.Path())
	case errors.Is(err, store.ErrNoSnapshot):
		logger.Printf("No snapshot at %s, starting fresh", st.Path())
	default:
		return err
	}

	link, conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Printf("Serving on %s (address 0x%016X)", connInfo, link.Address())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &server{
		analyzer: watercut.NewAnalyzer(bank, logger),
		link:     link,
		store:    st,
		logger:   logger,
		started:  time.Now(),
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.analyzer.Run(ctx) }()

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- link.Receive(func(p *razorlink.Packet, err error) bool {
			if err != nil {
				if runVerbose {
					logger.Printf("decode error: %v", err)
				}
				return ctx.Err() == nil
			}
			s.handle(ctx, p)
			return ctx.Err() == nil
		})
	}()

	var exitErr error
	for exited := false; !exited; {
		select {
		case c := <-s.analyzer.Cycles():
			if !runNoTelemetry {
				if err := link.Send(razorlink.NewTelemetry(link.Address(), c.Telemetry)); err != nil {
					logger.Printf("telemetry send failed: %v", err)
				}
			}

		case <-s.analyzer.Saves():
			var snap watercut.Snapshot
			if err := s.analyzer.Do(ctx, func(b *watercut.Bank) { snap = b.Snapshot() }); err == nil {
				s.save(snap)
			}

		case err := <-recvErr:
			if err == nil || isClosed(err) {
				err = ErrConnectionClosed
			}
			exitErr = err
			stop()
			<-runErr
			exited = true

		case <-runErr:
			exited = true
		}
	}

	// The analyzer goroutine has returned, the bank is ours again
	s.save(bank.Snapshot())
	logger.Printf("Stopped after %s", time.Since(s.started).Round(time.Second))
	return exitErr
}

func (s *server) save(snap watercut.Snapshot) {
	if err := s.store.Save(snap); err != nil {
		s.logger.Printf("save failed: %v", err)
		return
	}
	if runVerbose {
		s.logger.Printf("Saved snapshot to %s", s.store.Path())
	}
}

func (s *server) reply(p *razorlink.Packet) {
	if err := s.link.Send(p); err != nil {
		s.logger.Printf("send failed: %v", err)
	}
}

func (s *server) replyError(err error) {
	s.reply(razorlink.NewErrorInvalidCmd(s.link.Address(), razorlink.ErrorCodeFor(err)))
}

// handle serves one received packet. Frames for other addresses and
// replies from other analyzers are ignored.
func (s *server) handle(ctx context.Context, p *razorlink.Packet) {
	if !p.AddressedTo(s.link.Address()) {
		return
	}
	if err := p.ParseError(); err != nil {
		s.replyError(err)
		return
	}
	if runVerbose && p.Type() != razorlink.MsgPulseCapture {
		s.logger.Printf("request: %s", razorlink.FormatPacket(p))
	}

	addr := s.link.Address()
	switch p.Type() {
	case razorlink.MsgPulseCapture:
		c, err := razorlink.CaptureFromPacket(p)
		if err != nil {
			s.replyError(err)
			return
		}
		s.analyzer.Submit(ctx, c)

	case razorlink.MsgRegisterRead, razorlink.MsgRegisterWrite:
		reg, value, err := razorlink.RegisterFromPacket(p)
		if err != nil {
			s.replyError(err)
			return
		}
		write := p.Type() == razorlink.MsgRegisterWrite
		var out float64
		var opErr error
		err = s.analyzer.Do(ctx, func(b *watercut.Bank) {
			if write {
				if opErr = b.Write(reg, value); opErr != nil {
					return
				}
			}
			out, opErr = b.Read(reg)
		})
		if err != nil {
			return
		}
		if opErr != nil {
			s.replyError(opErr)
			return
		}
		s.reply(razorlink.NewRegisterValue(addr, reg, out))

	case razorlink.MsgSaveRequest:
		s.analyzer.Do(ctx, func(b *watercut.Bank) { b.RequestSave() })

	case razorlink.MsgCalibrateOil:
		ref, ok := razorlink.GetMapFloat(p.PayloadMap(), 0)
		if !ok {
			s.replyError(fmt.Errorf("%w: reference watercut", razorlink.ErrMissingField))
			return
		}
		var adj float64
		var opErr error
		err := s.analyzer.Do(ctx, func(b *watercut.Bank) {
			adj, opErr = b.CalibrateOil(ref, nil)
		})
		if err != nil {
			return
		}
		if opErr != nil {
			s.logger.Printf("calibration rejected: %v", opErr)
			s.replyError(opErr)
			return
		}
		s.logger.Printf("Oil calibrated to %.3f%%, adjust %.4f", ref, adj)
		s.reply(razorlink.NewRegisterValue(addr, watercut.RegOilAdjust, adj))

	case razorlink.MsgPingRequest:
		s.reply(razorlink.NewPingResponse(addr, time.Since(s.started)))

	case razorlink.MsgTelemetry, razorlink.MsgRegisterValue,
		razorlink.MsgPingResponse, razorlink.MsgErrorInvalidCmd:
		// Analyzer to host traffic

	default:
		s.reply(razorlink.NewErrorInvalidCmd(addr, razorlink.ErrorUnknownCommand))
	}
}
