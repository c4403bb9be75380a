// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"fmt"
	"math"

	"github.com/Thermoquad/razor/pkg/api"
	"github.com/Thermoquad/razor/pkg/variable"
)

// FreqDivider is the oscillator prescaler between the sensor and the pulse
// counter
const FreqDivider = 80.0

var (
	// ErrFreqOverflow means the pulse counter high word was not zero
	ErrFreqOverflow = errors.New("frequency counter overflow")

	// ErrFreqZeroTime means the capture reported no elapsed time
	ErrFreqZeroTime = errors.New("frequency capture with zero elapsed time")

	// ErrDensity means the density correction could not be computed
	ErrDensity = errors.New("density correction failed")

	// ErrTempNaN means the temperature reading was not a finite number
	ErrTempNaN = errors.New("temperature reading is not finite")

	// ErrWatercutNaN means the curves produced a non-finite watercut
	ErrWatercutNaN = errors.New("watercut is not finite")
)

// ReadFreq derives the oscillator frequency in MHz from a capture.
//
// The counter overflow and zero elapsed time conditions are exclusive: the
// one that applies is set and the other cleared. On either the frequency is
// marked NaN.
func (b *Bank) ReadFreq(c Capture) (float64, error) {
	switch {
	case c.PulseHi != 0:
		b.Diagnostics.Set(variable.DiagFreqOverflow)
		b.Diagnostics.Clear(variable.DiagFreqZeroTime)
		b.Frequency.NaN()
		return 0, ErrFreqOverflow
	case c.Micros == 0:
		b.Diagnostics.Set(variable.DiagFreqZeroTime)
		b.Diagnostics.Clear(variable.DiagFreqOverflow)
		b.Frequency.NaN()
		return 0, ErrFreqZeroTime
	}
	b.Diagnostics.Clear(variable.DiagFreqOverflow | variable.DiagFreqZeroTime)

	cfg := &b.Config
	freq := float64(c.PulseLo) / float64(c.Micros) * FreqDivider
	freq += cfg.FreqF1*b.Temperature.CalcVal + cfg.FreqF0
	freq += cfg.OilIndex

	b.Frequency.Update(freq, false)
	b.Diagnostics.Assign(variable.DiagFreqHigh, b.Frequency.Has(variable.StatAlarmHi))
	b.Diagnostics.Assign(variable.DiagFreqLow, b.Frequency.Has(variable.StatAlarmLo))

	return b.Frequency.CalcVal, nil
}

// ReadTemperature applies the offset, rounds to 0.1 °C and updates the
// temperature diagnostics. A non-finite reading marks the temperature NaN
// and returns ErrTempNaN.
func (b *Bank) ReadTemperature(raw float64) (float64, error) {
	t := math.Round((raw+b.Config.TempOffset)*10.0) / 10.0
	b.Temperature.Update(t, false)

	b.Diagnostics.Assign(variable.DiagTempHigh, b.Temperature.Has(variable.StatAlarmHi))
	b.Diagnostics.Assign(variable.DiagTempLow, b.Temperature.Has(variable.StatAlarmLo))

	b.Density.Aux = b.Temperature.CalcVal
	b.DensityAnalog.Aux = b.Temperature.CalcVal
	b.DensityModbus.Aux = b.Temperature.CalcVal

	if math.IsNaN(t) || math.IsInf(t, 0) {
		return b.Temperature.CalcVal, ErrTempNaN
	}
	return b.Temperature.CalcVal, nil
}

// ClassifyPhase returns the phase for one cycle: water when the frequency is
// outside the oil window or the reflected power is above the phase threshold
func (b *Bank) ClassifyPhase(freq, rp float64) Phase {
	cfg := &b.Config
	threshold := cfg.PhaseP1*freq + cfg.PhaseP0
	if freq < cfg.FreqLow || freq > cfg.FreqHigh || rp > threshold {
		return PhaseWater
	}
	return PhaseOil
}

// holdPhase runs the hold-over latch for one cycle.
//
// Every call counts a cycle; every change of the classified phase counts a
// rollover. When the window of PhaseHoldCycles closes the coil takes the
// current phase, provided fewer than two rollovers happened, and the window
// restarts. Returns true when the coil changed.
func (b *Bank) holdPhase(p Phase) bool {
	b.Phase = p
	b.Cycles++
	if p != b.PrevPhase {
		b.Rollovers++
	}
	b.PrevPhase = p

	changed := false
	if b.Cycles >= b.Config.PhaseHoldCycles {
		if b.Rollovers < 2 {
			oil := p == PhaseOil
			changed = oil != b.OilPhase
			b.OilPhase = oil
		}
		b.Cycles = 0
		b.Rollovers = 0
	}
	return changed
}

// ReadWatercut classifies the phase, evaluates the oil curves and updates
// the raw and averaged watercut. Returns the watercut including the oil
// adjust, or MaxWaterPhase while water is latched. A non-finite curve result
// is returned as is and kept out of the average.
func (b *Bank) ReadWatercut() float64 {
	freq := b.Frequency.CalcVal
	temp := b.Temperature.CalcVal

	b.holdPhase(b.ClassifyPhase(freq, b.ReflectedPower.CalcVal))

	if !b.OilPhase {
		b.WatercutRaw.Update(MaxWaterPhase, false)
		return MaxWaterPhase
	}

	cfg := &b.Config
	raw := b.OilCurve(freq, temp, 0)
	if cfg.Cutoff > 0 && raw > cfg.Cutoff {
		raw = b.OilCurve(freq, temp, HighCurveOffset)
	}
	b.WatercutRaw.Update(raw, false)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return raw
	}

	n := float64(cfg.AverageCount)
	if n < 1 {
		n = 1
	}
	b.WCRawAvg = (b.WCRawAvg*(n-1) + raw) / n

	return b.WCRawAvg + cfg.OilAdjust
}

// OilCurve evaluates the curve family starting at row offset for a
// frequency and temperature.
//
// The bracket is found by a linear scan for the first breakpoint above temp,
// paired with the one below it. Outside the breakpoints the end pair is
// extrapolated.
func (b *Bank) OilCurve(freq, temp float64, offset int) float64 {
	temps := &b.Config.TempsOil

	hi := len(temps) - 1
	for i := 1; i < len(temps); i++ {
		if temps[i] > temp {
			hi = i
			break
		}
	}
	lo := hi - 1

	w1 := Cubic(b.Config.Curves[lo+offset], freq)
	w2 := Cubic(b.Config.Curves[hi+offset], freq)
	return Interpolate(temp, temps[lo], temps[hi], w1, w2)
}

// Cubic evaluates c[0]*x³ + c[1]*x² + c[2]*x + c[3]
func Cubic(c [4]float64, x float64) float64 {
	return ((c[0]*x+c[1])*x+c[2])*x + c[3]
}

// Interpolate is the straight line through (t1, w1) and (t2, w2) evaluated
// at t. It does not clamp.
func Interpolate(t, t1, t2, w1, w2 float64) float64 {
	if t2 == t1 {
		return w1
	}
	return w2 - (t2-t)*(w2-w1)/(t2-t1)
}

// ApplyDensityCorrection selects the working density, corrects it to 15 °C
// and adds the density correction to wc. With correction disabled the
// correction register is zeroed and wc returned unchanged.
func (b *Bank) ApplyDensityCorrection(wc float64) (float64, error) {
	cfg := &b.Config
	if !cfg.DensityCorrection {
		b.DensityAdj.Update(0, false)
		return wc, nil
	}

	var rho float64
	switch cfg.DensitySource {
	case DensityAnalog:
		rho = b.DensityAnalog.CalcVal
	case DensityModbus:
		rho = b.DensityModbus.CalcVal
	default:
		rho = cfg.DensityManual
	}

	b.Density.Update(rho, false)
	b.Diagnostics.Assign(variable.DiagDensityHigh, b.Density.Has(variable.StatAlarmHi))
	b.Diagnostics.Assign(variable.DiagDensityLow, b.Density.Has(variable.StatAlarmLo))

	rho15, err := api.DensityAt15C(rho, b.Temperature.CalcVal)
	if err != nil {
		b.Diagnostics.Set(variable.DiagDensityFail)
		b.DensityAdj.NaN()
		return wc, fmt.Errorf("%w: %v", ErrDensity, err)
	}
	b.Diagnostics.Clear(variable.DiagDensityFail)

	delta := DensityDelta(rho15-cfg.DensityCalRef, cfg.DensityD1, cfg.DensityD2, cfg.DensityOrder)
	b.DensityAdj.Update(delta, false)

	wc += delta
	if cfg.OilPhaseCeiling > 0 && wc > cfg.OilPhaseCeiling {
		wc = MaxWaterPhase
	}
	return wc, nil
}

// DensityDelta is the density correction polynomial in the density
// difference d. Orders above two are treated as two.
func DensityDelta(d, d1, d2 float64, order int) float64 {
	switch {
	case order <= 0:
		return 0
	case order == 1:
		return d1 * d
	}
	return d1*d + d2*d*d
}

// AnalogOutput scales a watercut onto the 4-20 mA span [AOLRV, AOURV]
func (b *Bank) AnalogOutput(wc float64) float64 {
	cfg := &b.Config
	ma := 4.0 + 16.0*(wc-cfg.AOLRV)/(cfg.AOURV-cfg.AOLRV)
	return math.Max(4.0, math.Min(20.0, ma))
}

// Poll runs one measurement cycle on a capture.
//
// The steps run in order: frequency, temperature, watercut, density
// correction, commit. A failed step skips the rest of the computation, sets
// the alarm coil, drives the analog output to its fail-safe value and marks
// the watercut NaN. The error of the failed step is returned.
func (b *Bank) Poll(c Capture) error {
	b.ReflectedPower.Update(c.ReflectedPower, false)
	b.DensityAnalog.Update(c.AnalogDensity, false)

	_, err := b.ReadFreq(c)
	if _, terr := b.ReadTemperature(c.Temperature); err == nil {
		err = terr
	}

	var wc float64
	if err == nil {
		wc = b.ReadWatercut()
	}

	if b.Config.DensityCorrection {
		if err == nil {
			wc, err = b.ApplyDensityCorrection(wc)
		}
	} else {
		b.DensityAdj.Update(0, false)
	}

	if err == nil && (math.IsNaN(wc) || math.IsInf(wc, 0)) {
		err = ErrWatercutNaN
	}

	if err != nil {
		b.Alarm = true
		switch b.Config.AOFailMode {
		case FailHigh:
			b.AnalogOut.Update(b.Config.AOFailHigh, false)
		case FailLow:
			b.AnalogOut.Update(b.Config.AOFailLow, false)
		}
		b.Watercut.NaN()
		return err
	}

	b.Alarm = false
	b.Watercut.Update(wc, false)
	b.AnalogOut.Update(b.AnalogOutput(b.Watercut.Val), false)
	return nil
}
