// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Thermoquad/razor/pkg/api"
	"github.com/Thermoquad/razor/pkg/variable"
)

// Expected low-curve and high-curve results at 580 MHz and 25 °C for the
// fixture curves below, worked by hand from the cubic and the two-point
// interpolation over breakpoints 15.556 and 37.778.
const (
	wantLowCurve  = 17.2116849968
	wantHighCurve = 80.2498424984
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AverageCount = 1
	cfg.PhaseHoldCycles = 5
	cfg.TempsOil = [NumBreakpoints]float64{15.556, 37.778, 60.0}
	cfg.Curves = [2 * NumBreakpoints][4]float64{
		{0.000001, -0.001, 0.5, -140}, // 580 MHz -> 8.712
		{0.000001, -0.001, 0.5, -120}, // 580 MHz -> 28.712
		{0.000001, -0.001, 0.5, -100},
		{0, 0, 0.2, -40}, // 580 MHz -> 76
		{0, 0, 0.2, -30}, // 580 MHz -> 86
		{0, 0, 0.2, -20},
	}
	cfg.Cutoff = 0
	cfg.OilAdjust = 0
	return cfg
}

func newTestBank(t *testing.T, cfg Config) *Bank {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

// capture builds a capture reading freq MHz at tempC
func capture(freq, tempC float64) Capture {
	return Capture{
		PulseLo:     uint32(math.Round(freq / FreqDivider * 1000.0)),
		Micros:      1000,
		Temperature: tempC,
	}
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ============================================================
// Configuration
// ============================================================

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero average", func(c *Config) { c.AverageCount = 0 }},
		{"zero hold", func(c *Config) { c.PhaseHoldCycles = 0 }},
		{"unsorted breakpoints", func(c *Config) { c.TempsOil = [NumBreakpoints]float64{40, 20, 60} }},
		{"empty AO span", func(c *Config) { c.AOURV = c.AOLRV }},
		{"third order density", func(c *Config) { c.DensityOrder = 3 }},
		{"bad table", func(c *Config) { c.APITable = "Q" }},
		{"bad temp unit", func(c *Config) { c.TempUnit = "psi" }},
		{"density unit not density", func(c *Config) { c.DensityUnit = "°C" }},
		{"NaN breakpoint", func(c *Config) { c.TempsOil[1] = math.NaN() }},
		{"infinite curve", func(c *Config) { c.Curves[4][3] = math.Inf(-1) }},
		{"NaN fail level", func(c *Config) { c.AOFailHigh = math.NaN() }},
		{"infinite oil adjust", func(c *Config) { c.OilAdjust = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// ============================================================
// Frequency and temperature
// ============================================================

func TestReadFreq_Divider(t *testing.T) {
	b := newTestBank(t, testConfig())
	freq, err := b.ReadFreq(Capture{PulseLo: 7250, Micros: 1000})
	if err != nil {
		t.Fatalf("ReadFreq: %v", err)
	}
	if freq != 580.0 {
		t.Errorf("expected 7250 pulses / 1000 µs × 80 = 580, got %g", freq)
	}
}

func TestReadFreq_Correction(t *testing.T) {
	cfg := testConfig()
	cfg.FreqF1 = 0.5
	cfg.FreqF0 = -2.0
	cfg.OilIndex = 1.25
	b := newTestBank(t, cfg)
	b.ReadTemperature(20.0)

	freq, err := b.ReadFreq(Capture{PulseLo: 7250, Micros: 1000})
	if err != nil {
		t.Fatalf("ReadFreq: %v", err)
	}
	if want := 580.0 + 0.5*20.0 - 2.0 + 1.25; !near(freq, want, 1e-9) {
		t.Errorf("expected %g, got %g", want, freq)
	}
}

func TestReadFreq_ExclusiveDiagnostics(t *testing.T) {
	b := newTestBank(t, testConfig())

	if _, err := b.ReadFreq(Capture{PulseLo: 1, PulseHi: 1, Micros: 1000}); !errors.Is(err, ErrFreqOverflow) {
		t.Fatalf("expected ErrFreqOverflow, got %v", err)
	}
	if !b.Diagnostics.Has(variable.DiagFreqOverflow) || b.Diagnostics.Has(variable.DiagFreqZeroTime) {
		t.Errorf("overflow only expected, got %s", b.Diagnostics)
	}

	if _, err := b.ReadFreq(Capture{PulseLo: 7250}); !errors.Is(err, ErrFreqZeroTime) {
		t.Fatalf("expected ErrFreqZeroTime, got %v", err)
	}
	if b.Diagnostics.Has(variable.DiagFreqOverflow) || !b.Diagnostics.Has(variable.DiagFreqZeroTime) {
		t.Errorf("zero time only expected, got %s", b.Diagnostics)
	}

	if _, err := b.ReadFreq(Capture{PulseLo: 7250, Micros: 1000}); err != nil {
		t.Fatalf("ReadFreq: %v", err)
	}
	if b.Diagnostics.Has(variable.DiagFreqOverflow | variable.DiagFreqZeroTime) {
		t.Errorf("good capture should clear both, got %s", b.Diagnostics)
	}
}

func TestReadTemperature(t *testing.T) {
	cfg := testConfig()
	cfg.TempOffset = 0.26
	cfg.TempMax = 30
	b := newTestBank(t, cfg)

	got, err := b.ReadTemperature(25.0)
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if got != 25.3 {
		t.Errorf("expected 25.26 rounded to 25.3, got %g", got)
	}
	if b.Diagnostics.Has(variable.DiagTempHigh) {
		t.Error("25.3 is below the 30 °C limit")
	}

	b.ReadTemperature(35.0)
	if !b.Diagnostics.Has(variable.DiagTempHigh) {
		t.Error("expected TEMP_HIGH above the limit")
	}

	for _, raw := range []float64{math.NaN(), math.Inf(-1)} {
		if _, err := b.ReadTemperature(raw); !errors.Is(err, ErrTempNaN) {
			t.Errorf("reading %g: expected ErrTempNaN, got %v", raw, err)
		}
		if !b.Temperature.IsNaN() {
			t.Errorf("reading %g: expected the temperature marked NaN", raw)
		}
	}
}

func TestTemperatureDisplayUnit(t *testing.T) {
	cfg := testConfig()
	cfg.TempUnit = "°F"
	b := newTestBank(t, cfg)

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !near(b.Temperature.Val, 77.0, 1e-9) {
		t.Errorf("expected 77 °F displayed, got %g", b.Temperature.Val)
	}
	if !near(b.WatercutRaw.Val, wantLowCurve, 1e-6) {
		t.Errorf("display unit must not change the curves, got %g", b.WatercutRaw.Val)
	}
}

// ============================================================
// Watercut curves
// ============================================================

func TestPoll_EndToEnd(t *testing.T) {
	b := newTestBank(t, testConfig())

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !near(b.WatercutRaw.Val, wantLowCurve, 1e-6) {
		t.Errorf("raw: expected %.10f, got %.10f", wantLowCurve, b.WatercutRaw.Val)
	}
	if !near(b.Watercut.Val, wantLowCurve, 1e-6) {
		t.Errorf("watercut: expected %.10f, got %.10f", wantLowCurve, b.Watercut.Val)
	}
	if b.Alarm || b.Watercut.IsNaN() {
		t.Error("good cycle should not alarm")
	}
	if !b.OilPhase {
		t.Error("bank should start in oil phase")
	}

	wantAO := 4.0 + 16.0*wantLowCurve/100.0
	if !near(b.AnalogOut.Val, wantAO, 1e-6) {
		t.Errorf("analog output: expected %g mA, got %g", wantAO, b.AnalogOut.Val)
	}
}

func TestPoll_DualCurveSwitchover(t *testing.T) {
	cfg := testConfig()
	cfg.Cutoff = 10.0
	b := newTestBank(t, cfg)

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !near(b.WatercutRaw.Val, wantHighCurve, 1e-6) {
		t.Errorf("expected high curve %.10f, got %.10f", wantHighCurve, b.WatercutRaw.Val)
	}

	cfg.Cutoff = 50.0
	b = newTestBank(t, cfg)
	b.Poll(capture(580, 25))
	if !near(b.WatercutRaw.Val, wantLowCurve, 1e-6) {
		t.Errorf("below cutoff the low curve is used, got %.10f", b.WatercutRaw.Val)
	}
}

func TestOilCurve_Bracketing(t *testing.T) {
	cfg := testConfig()
	cfg.Curves[0] = [4]float64{0, 0, 0, 10}
	cfg.Curves[1] = [4]float64{0, 0, 0, 20}
	cfg.Curves[2] = [4]float64{0, 0, 0, 40}
	b := newTestBank(t, cfg)

	tests := []struct {
		name string
		temp float64
		want float64
	}{
		{"first breakpoint", 15.556, 10},
		{"on middle breakpoint", 37.778, 20},
		{"upper bracket", 48.889, 30},
		{"last breakpoint", 60.0, 40},
		{"below range extrapolates", 4.445, 5},
		{"above range extrapolates", 71.111, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.OilCurve(580, tt.temp, 0); !near(got, tt.want, 1e-6) {
				t.Errorf("expected %g, got %g", tt.want, got)
			}
		})
	}
}

func TestInterpolate_Unclamped(t *testing.T) {
	if got := Interpolate(30, 10, 20, 1, 2); got != 3 {
		t.Errorf("expected 3, got %g", got)
	}
	if got := Interpolate(5, 10, 20, 1, 2); got != 0.5 {
		t.Errorf("expected 0.5, got %g", got)
	}
	if got := Interpolate(5, 10, 10, 7, 9); got != 7 {
		t.Errorf("degenerate span should return w1, got %g", got)
	}
}

func TestCubic(t *testing.T) {
	if got := Cubic([4]float64{1, 2, 3, 4}, 2); got != 26 {
		t.Errorf("8+8+6+4 = 26, got %g", got)
	}
}

func TestReadWatercut_LeakyAverage(t *testing.T) {
	cfg := testConfig()
	cfg.AverageCount = 4
	b := newTestBank(t, cfg)

	b.Poll(capture(580, 25))
	if !near(b.WCRawAvg, wantLowCurve/4, 1e-6) {
		t.Errorf("first cycle: expected %g, got %g", wantLowCurve/4, b.WCRawAvg)
	}
	b.Poll(capture(580, 25))
	if !near(b.WCRawAvg, wantLowCurve*7/16, 1e-6) {
		t.Errorf("second cycle: expected %g, got %g", wantLowCurve*7/16, b.WCRawAvg)
	}
	if !near(b.WatercutRaw.Val, wantLowCurve, 1e-6) {
		t.Errorf("raw register is not averaged, got %g", b.WatercutRaw.Val)
	}
}

func TestReadWatercut_OilAdjust(t *testing.T) {
	cfg := testConfig()
	cfg.OilAdjust = 1.5
	b := newTestBank(t, cfg)
	b.Poll(capture(580, 25))
	if !near(b.Watercut.Val, wantLowCurve+1.5, 1e-6) {
		t.Errorf("expected %g, got %g", wantLowCurve+1.5, b.Watercut.Val)
	}
}

// ============================================================
// Phase hold-over
// ============================================================

func TestPhase_OscillationDoesNotCommit(t *testing.T) {
	b := newTestBank(t, testConfig())

	for i := 0; i < 40; i++ {
		freq := 580.0
		if i%2 == 0 {
			freq = 900.0 // above FreqHigh
		}
		b.Poll(capture(freq, 25))
		if !b.OilPhase {
			t.Fatalf("cycle %d: oscillating phase must not commit", i)
		}
	}
}

func TestPhase_StableCommits(t *testing.T) {
	b := newTestBank(t, testConfig())
	hold := b.Config.PhaseHoldCycles

	for i := 0; i < hold; i++ {
		b.Poll(capture(900, 25))
	}
	if b.OilPhase {
		t.Fatalf("water held for %d cycles should commit", hold)
	}
	if b.Watercut.Val != MaxWaterPhase || b.WatercutRaw.Val != MaxWaterPhase {
		t.Errorf("water phase forces %g%%, got %g/%g", MaxWaterPhase, b.Watercut.Val, b.WatercutRaw.Val)
	}

	for i := 0; i < hold; i++ {
		b.Poll(capture(580, 25))
	}
	if !b.OilPhase {
		t.Fatalf("oil held for %d cycles should commit", hold)
	}
}

func TestPhase_ReflectedPowerThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.PhaseP1 = 0.1
	cfg.PhaseP0 = 10
	b := newTestBank(t, cfg)

	// threshold at 580 MHz is 68
	if p := b.ClassifyPhase(580, 67); p != PhaseOil {
		t.Errorf("below threshold should be oil, got %s", p)
	}
	if p := b.ClassifyPhase(580, 69); p != PhaseWater {
		t.Errorf("above threshold should be water, got %s", p)
	}
	if p := b.ClassifyPhase(300, 0); p != PhaseWater {
		t.Errorf("below FreqLow should be water, got %s", p)
	}
}

func TestPhase_SingleChangeInWindowCommits(t *testing.T) {
	b := newTestBank(t, testConfig())

	// two oil cycles then water; the window closes on cycle 5 with one rollover
	seq := []Phase{PhaseOil, PhaseOil, PhaseWater, PhaseWater, PhaseWater}
	for _, p := range seq {
		b.holdPhase(p)
	}
	if b.OilPhase {
		t.Error("one rollover in the window should commit")
	}
	if b.Cycles != 0 || b.Rollovers != 0 {
		t.Errorf("window should restart, got cycles=%d rollovers=%d", b.Cycles, b.Rollovers)
	}
}

// ============================================================
// Failure handling
// ============================================================

func TestPoll_FailSafe(t *testing.T) {
	tests := []struct {
		name   string
		mode   FailMode
		wantAO float64
	}{
		{"high", FailHigh, 22.0},
		{"low", FailLow, 3.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AOFailMode = tt.mode
			b := newTestBank(t, cfg)

			b.Poll(capture(580, 25))
			err := b.Poll(Capture{PulseLo: 1, PulseHi: 2, Micros: 1000, Temperature: 25})
			if !errors.Is(err, ErrFreqOverflow) {
				t.Fatalf("expected ErrFreqOverflow, got %v", err)
			}
			if !b.Alarm || !b.Watercut.IsNaN() {
				t.Error("failed cycle should alarm and mark the watercut NaN")
			}
			if b.AnalogOut.Val != tt.wantAO {
				t.Errorf("expected AO %g, got %g", tt.wantAO, b.AnalogOut.Val)
			}
			if b.Watercut.Val != 0 {
				t.Errorf("NaN watercut reads 0, got %g", b.Watercut.Val)
			}

			if err := b.Poll(capture(580, 25)); err != nil {
				t.Fatalf("recovery Poll: %v", err)
			}
			if b.Alarm || b.Watercut.IsNaN() {
				t.Error("good cycle should clear the alarm")
			}
		})
	}
}

func TestPoll_NaNTemperatureFails(t *testing.T) {
	cfg := testConfig()
	cfg.AOFailMode = FailHigh
	b := newTestBank(t, cfg)

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	err := b.Poll(capture(580, math.NaN()))
	if !errors.Is(err, ErrTempNaN) {
		t.Fatalf("expected ErrTempNaN, got %v", err)
	}
	if !b.Alarm || !b.Watercut.IsNaN() {
		t.Errorf("expected alarm and NaN watercut, got alarm %v NaN %v", b.Alarm, b.Watercut.IsNaN())
	}
	if b.AnalogOut.Val != 22.0 {
		t.Errorf("expected fail-high AO 22, got %g", b.AnalogOut.Val)
	}

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("recovery Poll: %v", err)
	}
	if !near(b.Watercut.Val, wantLowCurve, 1e-6) {
		t.Errorf("expected %g after recovery, got %g", wantLowCurve, b.Watercut.Val)
	}
}

func TestPoll_NonFiniteWatercutFails(t *testing.T) {
	cfg := testConfig()
	cfg.AOFailMode = FailLow
	b := newTestBank(t, cfg)

	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Curves set directly so the bank runs with a value Validate refuses
	good := b.Config.Curves
	for i := range b.Config.Curves {
		b.Config.Curves[i][3] = math.Inf(1)
	}
	err := b.Poll(capture(580, 25))
	if !errors.Is(err, ErrWatercutNaN) {
		t.Fatalf("expected ErrWatercutNaN, got %v", err)
	}
	if !b.Alarm || !b.Watercut.IsNaN() {
		t.Errorf("expected alarm and NaN watercut, got alarm %v NaN %v", b.Alarm, b.Watercut.IsNaN())
	}
	if b.AnalogOut.Val != 3.6 {
		t.Errorf("expected fail-low AO 3.6, got %g", b.AnalogOut.Val)
	}

	b.Config.Curves = good
	if err := b.Poll(capture(580, 25)); err != nil {
		t.Fatalf("recovery Poll: %v", err)
	}
	if !near(b.WCRawAvg, wantLowCurve, 1e-6) {
		t.Errorf("non-finite cycle must stay out of the average, got %g", b.WCRawAvg)
	}
}

func TestPoll_FailHoldKeepsOutput(t *testing.T) {
	cfg := testConfig()
	cfg.AOFailMode = FailHold
	b := newTestBank(t, cfg)

	b.Poll(capture(580, 25))
	before := b.AnalogOut.Val
	b.Poll(Capture{PulseLo: 7250, Temperature: 25})
	if b.AnalogOut.Val != before {
		t.Errorf("hold mode should keep %g, got %g", before, b.AnalogOut.Val)
	}
}

// ============================================================
// Density correction
// ============================================================

func TestDensityDelta(t *testing.T) {
	tests := []struct {
		order int
		want  float64
	}{
		{0, 0},
		{1, 2.0},
		{2, 6.0},
		{3, 6.0},
	}
	for _, tt := range tests {
		if got := DensityDelta(20, 0.1, 0.01, tt.order); !near(got, tt.want, 1e-12) {
			t.Errorf("order %d: expected %g, got %g", tt.order, tt.want, got)
		}
	}
}

func TestApplyDensityCorrection(t *testing.T) {
	cfg := testConfig()
	cfg.DensityCorrection = true
	cfg.DensitySource = DensityManual
	cfg.DensityManual = 870
	cfg.DensityCalRef = 850
	cfg.DensityD1 = 0.1
	cfg.DensityD2 = 0.01
	cfg.DensityOrder = 2
	b := newTestBank(t, cfg)

	// at 15 °C the manual density is already the 15 °C density
	if err := b.Poll(capture(580, 15)); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !near(b.DensityAdj.Val, 6.0, 1e-9) {
		t.Errorf("expected correction 6, got %g", b.DensityAdj.Val)
	}
	if !near(b.Watercut.Val, b.WatercutRaw.Val+6.0, 1e-9) {
		t.Errorf("correction not added: raw %g, watercut %g", b.WatercutRaw.Val, b.Watercut.Val)
	}
	if b.Density.Val != 870 {
		t.Errorf("working density should be the manual entry, got %g", b.Density.Val)
	}
}

func TestApplyDensityCorrection_Sources(t *testing.T) {
	cfg := testConfig()
	cfg.DensityCorrection = true
	cfg.DensityOrder = 1
	cfg.DensityD1 = 1

	cfg.DensitySource = DensityAnalog
	b := newTestBank(t, cfg)
	c := capture(580, 15)
	c.AnalogDensity = 855
	b.Poll(c)
	if b.Density.Val != 855 {
		t.Errorf("analog source: expected 855, got %g", b.Density.Val)
	}

	cfg.DensitySource = DensityModbus
	b = newTestBank(t, cfg)
	if err := b.Write(RegDensityModbus, 845); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.Poll(capture(580, 15))
	if b.Density.Val != 845 {
		t.Errorf("modbus source: expected 845, got %g", b.Density.Val)
	}
}

func TestApplyDensityCorrection_Ceiling(t *testing.T) {
	cfg := testConfig()
	cfg.DensityCorrection = true
	cfg.DensityManual = 850
	cfg.DensityCalRef = 850
	cfg.OilPhaseCeiling = 10
	b := newTestBank(t, cfg)

	b.Poll(capture(580, 25))
	if b.Watercut.Val != MaxWaterPhase {
		t.Errorf("watercut above the ceiling reads %g%%, got %g", MaxWaterPhase, b.Watercut.Val)
	}
}

func TestApplyDensityCorrection_DisabledZeroes(t *testing.T) {
	cfg := testConfig()
	b := newTestBank(t, cfg)
	b.DensityAdj.Update(4.2, false)

	b.Poll(capture(580, 25))
	if b.DensityAdj.Val != 0 {
		t.Errorf("disabled correction must zero the register, got %g", b.DensityAdj.Val)
	}

	// also on a failed cycle
	b.DensityAdj.Update(4.2, false)
	b.Poll(Capture{PulseLo: 7250, Temperature: 25})
	if b.DensityAdj.Val != 0 {
		t.Errorf("disabled correction must zero the register on failure, got %g", b.DensityAdj.Val)
	}
}

func TestPoll_DensityFailure(t *testing.T) {
	cfg := testConfig()
	cfg.DensityCorrection = true
	cfg.DensityManual = -5
	b := newTestBank(t, cfg)

	err := b.Poll(capture(580, 25))
	if !errors.Is(err, ErrDensity) {
		t.Fatalf("expected ErrDensity, got %v", err)
	}
	if !b.Alarm || !b.Watercut.IsNaN() || !b.Diagnostics.Has(variable.DiagDensityFail) {
		t.Errorf("density failure should alarm, NaN and flag, diag %s", b.Diagnostics)
	}
}

func TestDensityDisplayAPI(t *testing.T) {
	cfg := testConfig()
	cfg.DensityCorrection = true
	cfg.DensityManual = 876
	cfg.DensityUnit = "°API"
	b := newTestBank(t, cfg)

	b.Poll(capture(580, 15.6))
	want := api.KgM3ToAPI(876)
	if !near(b.Density.Val, want, 0.1) {
		t.Errorf("expected about %g °API, got %g", want, b.Density.Val)
	}
	if b.Density.CalcVal != 876 {
		t.Errorf("calculation unit stays kg/m³, got %g", b.Density.CalcVal)
	}
}

// ============================================================
// Sampling
// ============================================================

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestCaptureSample_Averages(t *testing.T) {
	cfg := testConfig()
	cfg.AverageCount = 2
	b := newTestBank(t, cfg)

	temps := []float64{20, 22, 24}
	for i, temp := range temps {
		b.Poll(capture(580, temp))
		b.CaptureSample(noon.Add(time.Duration(i) * time.Second))
	}

	if !near(b.TempAvg.Val, 22, 1e-9) {
		t.Errorf("temperature averages everything since reset, expected 22, got %g", b.TempAvg.Val)
	}
	if !near(b.FreqAvg.Val, 580, 1e-9) {
		t.Errorf("expected 580 MHz average, got %g", b.FreqAvg.Val)
	}

	last2 := b.wcBuf.Last(2)
	want := (last2[0] + last2[1]) / 2
	if !near(b.WatercutAvg.Val, want, 1e-9) {
		t.Errorf("watercut average over 2 samples: expected %g, got %g", want, b.WatercutAvg.Val)
	}
}

func TestCaptureSample_NightlyTempReset(t *testing.T) {
	b := newTestBank(t, testConfig())

	for i := 0; i < 5; i++ {
		b.Poll(capture(580, 20))
		b.CaptureSample(noon.Add(time.Duration(i) * time.Second))
	}

	b.Poll(capture(580, 30))
	b.CaptureSample(time.Date(2026, 3, 14, 23, 59, 58, 0, time.UTC))
	if !near(b.TempAvg.Val, 30, 1e-9) {
		t.Errorf("reset window should clear the temperature ring, average %g", b.TempAvg.Val)
	}

	b.Poll(capture(580, 40))
	b.CaptureSample(time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC))
	if !near(b.TempAvg.Val, 35, 1e-9) {
		t.Errorf("after the window samples accumulate again, expected 35, got %g", b.TempAvg.Val)
	}
}

func TestCaptureSample_OnDemandReset(t *testing.T) {
	cfg := testConfig()
	cfg.TempResetDaily = false
	b := newTestBank(t, cfg)

	b.Poll(capture(580, 20))
	b.CaptureSample(noon)
	b.Poll(capture(580, 30))
	b.CaptureSample(time.Date(2026, 3, 14, 23, 59, 58, 0, time.UTC))
	if !near(b.TempAvg.Val, 25, 1e-9) {
		t.Errorf("daily reset disabled, expected 25, got %g", b.TempAvg.Val)
	}

	if err := b.Write(RegTempReset, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.Poll(capture(580, 40))
	b.CaptureSample(noon)
	if !near(b.TempAvg.Val, 40, 1e-9) {
		t.Errorf("requested reset should clear the ring, got %g", b.TempAvg.Val)
	}
}

// ============================================================
// Calibration
// ============================================================

func TestCalibrateOil_ActiveStream(t *testing.T) {
	b := newTestBank(t, testConfig())
	b.Poll(capture(580, 25))

	adj, err := b.CalibrateOil(20.0, nil)
	if err != nil {
		t.Fatalf("CalibrateOil: %v", err)
	}
	if !near(adj, 20.0-wantLowCurve, 1e-6) {
		t.Errorf("expected adjust %g, got %g", 20.0-wantLowCurve, adj)
	}
	if !b.TakeSaveRequest() {
		t.Error("calibration should request a save")
	}

	b.Poll(capture(580, 25))
	if !near(b.Watercut.Val, 20.0, 1e-6) {
		t.Errorf("calibrated watercut should read 20, got %g", b.Watercut.Val)
	}
}

func TestCalibrateOil_Snapshot(t *testing.T) {
	b := newTestBank(t, testConfig())

	snap := StreamSnapshot{
		WCRawAvg:         12,
		WindowAvg:        30,
		WindowFull:       true,
		DensityCorrected: true,
		DensityAdj:       1.5,
		OilPhase:         true,
	}
	adj, err := b.CalibrateOil(25, &snap)
	if err != nil {
		t.Fatalf("CalibrateOil: %v", err)
	}
	if !near(adj, -6.5, 1e-12) {
		t.Errorf("rolled window with density: expected -6.5, got %g", adj)
	}

	snap.WindowFull = false
	snap.DensityCorrected = false
	adj, _ = b.CalibrateOil(25, &snap)
	if !near(adj, 13, 1e-12) {
		t.Errorf("window not rolled: expected 13, got %g", adj)
	}

	snap.OilPhase = false
	if _, err := b.CalibrateOil(25, &snap); !errors.Is(err, ErrWaterPhase) {
		t.Errorf("expected ErrWaterPhase, got %v", err)
	}
}

func TestCalibrateOil_NoMeasurement(t *testing.T) {
	b := newTestBank(t, testConfig())
	b.Poll(Capture{PulseLo: 7250, Temperature: 25})
	if _, err := b.CalibrateOil(20, nil); !errors.Is(err, ErrNoMeasurement) {
		t.Errorf("expected ErrNoMeasurement, got %v", err)
	}
}
