// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"time"
)

// CaptureSample pushes the current raw watercut, temperature, frequency and
// reflected power into their rings and refreshes the moving averages. It
// runs once per second.
//
// The temperature ring is cleared first when a reset was requested or, with
// TempResetDaily, between 23:59:57 and 00:00:00.
func (b *Bank) CaptureSample(now time.Time) {
	if b.tempResetPending || (b.Config.TempResetDaily && inTempResetWindow(now)) {
		b.tempBuf.Reset()
		b.tempResetPending = false
	}

	n := b.Config.AverageCount

	if !b.WatercutRaw.IsNaN() {
		b.wcBuf.Add(b.WatercutRaw.CalcVal)
		b.WatercutAvg.Update(b.wcBuf.Average(n), false)
	}
	if !b.Frequency.IsNaN() {
		b.freqBuf.Add(b.Frequency.CalcVal)
		b.FreqAvg.Update(b.freqBuf.Average(n), false)
	}
	b.rpBuf.Add(b.ReflectedPower.CalcVal)
	b.RPAvg.Update(b.rpBuf.Average(n), false)

	b.tempBuf.Add(b.Temperature.CalcVal)
	b.TempAvg.Update(b.tempBuf.Average(b.tempBuf.Cap()), false)

	b.samples++
}

// RequestTempReset clears the temperature average on the next sample
func (b *Bank) RequestTempReset() {
	b.tempResetPending = true
}

func inTempResetWindow(now time.Time) bool {
	h, m, s := now.Clock()
	return (h == 23 && m == 59 && s >= 57) || (h == 0 && m == 0 && s == 0)
}

// StreamSnapshot records the stream state at the moment a reference sample
// is drawn, so the laboratory result can be applied later
type StreamSnapshot struct {
	Taken time.Time `cbor:"1,keyasint"`

	// WCRawAvg is the leaky raw average at the time of the draw
	WCRawAvg float64 `cbor:"2,keyasint"`

	// WindowAvg is the moving average of the raw watercut and WindowFull
	// tells whether the averaging window had rolled over
	WindowAvg  float64 `cbor:"3,keyasint"`
	WindowFull bool    `cbor:"4,keyasint"`

	// DensityAdj is the density correction in effect, when enabled
	DensityCorrected bool    `cbor:"5,keyasint"`
	DensityAdj       float64 `cbor:"6,keyasint"`

	OilPhase bool `cbor:"7,keyasint"`
}

// TakeStreamSnapshot records the active stream
func (b *Bank) TakeStreamSnapshot(now time.Time) StreamSnapshot {
	return StreamSnapshot{
		Taken:            now,
		WCRawAvg:         b.WCRawAvg,
		WindowAvg:        b.wcBuf.Average(b.Config.AverageCount),
		WindowFull:       b.wcBuf.Len() >= b.Config.AverageCount,
		DensityCorrected: b.Config.DensityCorrection && !b.DensityAdj.IsNaN(),
		DensityAdj:       b.DensityAdj.CalcVal,
		OilPhase:         b.OilPhase,
	}
}

var (
	// ErrWaterPhase is returned when calibrating while water phase is latched
	ErrWaterPhase = errors.New("cannot calibrate oil in water phase")

	// ErrNoMeasurement is returned when there is no valid watercut to
	// calibrate against
	ErrNoMeasurement = errors.New("no valid watercut measurement")
)

// CalibrateOil sets the oil adjust so that the measured watercut reads
// reference. snap selects a saved stream; nil calibrates the active stream.
//
// Once the averaging window has rolled over, the moving average of the
// window is the measured value; before that the leaky average is used. The
// density correction is counted when it was applied to the stream. Returns
// the new oil adjust and posts a save request.
func (b *Bank) CalibrateOil(reference float64, snap *StreamSnapshot) (float64, error) {
	var s StreamSnapshot
	if snap != nil {
		s = *snap
	} else {
		if b.Watercut.IsNaN() || b.WatercutRaw.IsNaN() {
			return b.Config.OilAdjust, ErrNoMeasurement
		}
		s = b.TakeStreamSnapshot(time.Time{})
	}

	if !s.OilPhase {
		return b.Config.OilAdjust, ErrWaterPhase
	}

	measured := s.WCRawAvg
	if s.WindowFull {
		measured = s.WindowAvg
	}
	if s.DensityCorrected {
		measured += s.DensityAdj
	}

	b.Config.OilAdjust = reference - measured
	b.RequestSave()
	return b.Config.OilAdjust, nil
}
