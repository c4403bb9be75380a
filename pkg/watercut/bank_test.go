// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Register map
// ============================================================

func TestRegisters_Read(t *testing.T) {
	b := newTestBank(t, testConfig())
	b.Poll(capture(580, 25))

	got, err := b.Read(RegWatercutRaw)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !near(got, wantLowCurve, 1e-6) {
		t.Errorf("expected %g, got %g", wantLowCurve, got)
	}

	if v, _ := b.Read(RegOilPhase); v != 1 {
		t.Errorf("oil phase coil should read 1, got %g", v)
	}
	if v, _ := b.Read(RegTempsOil + 1); v != 37.778 {
		t.Errorf("expected breakpoint 37.778, got %g", v)
	}
	if _, err := b.Read(9999); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("expected ErrUnknownRegister, got %v", err)
	}
}

func TestRegisters_WriteConfig(t *testing.T) {
	b := newTestBank(t, testConfig())

	if err := b.Write(RegCutoff, 10); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.Config.Cutoff != 10 {
		t.Errorf("expected cutoff 10, got %g", b.Config.Cutoff)
	}
	if !b.TakeSaveRequest() {
		t.Error("configuration write should request a save")
	}

	b.Poll(capture(580, 25))
	if !near(b.WatercutRaw.Val, wantHighCurve, 1e-6) {
		t.Errorf("written cutoff not used, raw %g", b.WatercutRaw.Val)
	}

	addr, ok := b.Lookup("CURVE_3_2")
	if !ok || addr != RegCurves+14 {
		t.Fatalf("CURVE_3_2 should be at %d, got %d (ok=%v)", RegCurves+14, addr, ok)
	}
	if err := b.Write(addr, 0.25); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.Config.Curves[3][2] != 0.25 {
		t.Errorf("curve coefficient not written, got %g", b.Config.Curves[3][2])
	}
}

func TestRegisters_WriteRejected(t *testing.T) {
	b := newTestBank(t, testConfig())

	if err := b.Write(RegAverageCount, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if b.Config.AverageCount != 1 {
		t.Errorf("rejected write must leave the configuration, got %d", b.Config.AverageCount)
	}
	if b.TakeSaveRequest() {
		t.Error("rejected write must not request a save")
	}

	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		if err := b.Write(RegTempsOil+1, v); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("breakpoint %g: expected ErrInvalidConfig, got %v", v, err)
		}
	}
	if b.Config.TempsOil[1] != 37.778 {
		t.Errorf("rejected breakpoint must leave 37.778, got %g", b.Config.TempsOil[1])
	}
	if err := b.Poll(capture(580, 25)); err != nil || b.Alarm {
		t.Errorf("poll after rejected writes: expected no alarm, got err %v alarm %v", err, b.Alarm)
	}

	if err := b.Write(RegWatercut, 50); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestRegisters_List(t *testing.T) {
	b := newTestBank(t, testConfig())
	regs := b.Registers()

	for i := 1; i < len(regs); i++ {
		if regs[i].Addr <= regs[i-1].Addr {
			t.Fatalf("registers not in strict address order at %d: %d after %d", i, regs[i].Addr, regs[i-1].Addr)
		}
	}

	want := 2 + 15 + 28 + NumBreakpoints + 2*NumBreakpoints*4
	if len(regs) != want {
		t.Errorf("expected %d registers, got %d", want, len(regs))
	}
}

// ============================================================
// Snapshot
// ============================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.AverageCount = 3
	b := newTestBank(t, cfg)
	for i := 0; i < 7; i++ {
		b.Poll(capture(580+float64(i), 25))
		b.CaptureSample(noon.Add(time.Duration(i) * time.Second))
	}
	b.Write(RegOilAdjust, 0.75)

	snap := b.Snapshot()

	other := newTestBank(t, DefaultConfig())
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(other.Snapshot(), snap) {
		t.Error("restored bank does not snapshot identically")
	}
	if other.Config.OilAdjust != 0.75 {
		t.Errorf("configuration not restored, oil adjust %g", other.Config.OilAdjust)
	}

	b.Poll(capture(590, 25))
	other.Poll(capture(590, 25))
	if b.Watercut.Val != other.Watercut.Val {
		t.Errorf("restored bank diverges: %g vs %g", other.Watercut.Val, b.Watercut.Val)
	}
}

func TestSnapshot_RejectsUnknownVersion(t *testing.T) {
	b := newTestBank(t, testConfig())
	snap := b.Snapshot()
	snap.Version = 99
	if err := b.Restore(snap); !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("expected ErrSnapshotVersion, got %v", err)
	}
}

// ============================================================
// Analyzer
// ============================================================

func TestAnalyzer_Cycle(t *testing.T) {
	b := newTestBank(t, testConfig())
	var logBuf bytes.Buffer
	a := NewAnalyzer(b, log.New(&logBuf, "", 0))
	a.SetSampleInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if err := a.Submit(ctx, capture(580, 25)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case c := <-a.Cycles():
		if c.Err != nil {
			t.Fatalf("cycle failed: %v", c.Err)
		}
		if !near(c.WatercutRaw, wantLowCurve, 1e-6) {
			t.Errorf("expected %g, got %g", wantLowCurve, c.WatercutRaw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no cycle delivered")
	}

	var cutoff float64
	err := a.Do(ctx, func(b *Bank) {
		b.Write(RegCutoff, 12)
		cutoff = b.Config.Cutoff
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if cutoff != 12 {
		t.Errorf("expected cutoff 12, got %g", cutoff)
	}

	select {
	case <-a.Saves():
	case <-time.After(2 * time.Second):
		t.Fatal("configuration write should signal a save")
	}

	a.Submit(ctx, Capture{PulseLo: 7250, Temperature: 25})
	select {
	case c := <-a.Cycles():
		if !errors.Is(c.Err, ErrFreqZeroTime) || !c.Alarm {
			t.Errorf("expected a zero-time failure with alarm, got %v alarm=%v", c.Err, c.Alarm)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no cycle delivered")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := a.Do(context.Background(), func(*Bank) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after Run returned, got %v", err)
	}

	logs := logBuf.String()
	if !strings.Contains(logs, "cycle failed") || !strings.Contains(logs, "save requested") {
		t.Errorf("expected failure and save in the log, got %q", logs)
	}
}

func TestAnalyzer_Samples(t *testing.T) {
	b := newTestBank(t, testConfig())
	a := NewAnalyzer(b, nil)
	a.SetSampleInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.Submit(ctx, capture(580, 25))
	<-a.Cycles()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var n int
		a.Do(ctx, func(b *Bank) { n = b.wcBuf.Len() })
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("ticker never sampled")
}
