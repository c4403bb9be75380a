// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package variable

import "strings"

// Diagnostics is the instrument-wide diagnostic bitmask read by alarm,
// relay and display logic.
type Diagnostics uint32

// Diagnostic bits
const (
	DiagFreqHigh Diagnostics = 1 << iota
	DiagFreqLow
	DiagTempHigh
	DiagTempLow
	DiagDensityHigh
	DiagDensityLow
	DiagVarHigh
	DiagVarLow
	DiagFreqOverflow
	DiagFreqZeroTime
	DiagDensityFail
	DiagDensityExtrapolate
)

var diagNames = []struct {
	bit  Diagnostics
	name string
}{
	{DiagFreqHigh, "FREQ_HIGH"},
	{DiagFreqLow, "FREQ_LOW"},
	{DiagTempHigh, "TEMP_HIGH"},
	{DiagTempLow, "TEMP_LOW"},
	{DiagDensityHigh, "DENSITY_HIGH"},
	{DiagDensityLow, "DENSITY_LOW"},
	{DiagVarHigh, "VAR_HIGH"},
	{DiagVarLow, "VAR_LOW"},
	{DiagFreqOverflow, "FREQ_OVERFLOW"},
	{DiagFreqZeroTime, "FREQ_ZERO_TIME"},
	{DiagDensityFail, "DENSITY_CORRELATION_FAIL"},
	{DiagDensityExtrapolate, "DENSITY_CORRELATION_EXTRAPOLATE"},
}

// Set sets the given bits
func (d *Diagnostics) Set(bits Diagnostics) {
	*d |= bits
}

// Clear clears the given bits
func (d *Diagnostics) Clear(bits Diagnostics) {
	*d &^= bits
}

// Assign sets the bits when on is true and clears them otherwise
func (d *Diagnostics) Assign(bits Diagnostics, on bool) {
	if on {
		d.Set(bits)
	} else {
		d.Clear(bits)
	}
}

// Has reports whether any of the given bits are set
func (d Diagnostics) Has(bits Diagnostics) bool {
	return d&bits != 0
}

// String lists the set bits by name
func (d Diagnostics) String() string {
	if d == 0 {
		return "OK"
	}
	parts := []string{}
	for _, n := range diagNames {
		if d&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
