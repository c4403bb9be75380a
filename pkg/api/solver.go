// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"fmt"
	"math"

	"github.com/Thermoquad/razor/pkg/units"
)

const (
	// MaxIterations caps the process-to-standard fixed-point iteration
	MaxIterations = 25

	// ConvergenceTolerance is the step, in kg/m³, below which the iteration
	// is considered converged
	ConvergenceTolerance = 0.05
)

// Correlation is the table correlation configuration
type Correlation struct {
	Table Table

	// Alpha is the table C thermal expansion coefficient, per °C
	Alpha float64

	// TempC is the process temperature
	TempC float64
}

// Result is the outcome of a process-to-standard solve
type Result struct {
	// Value is the reference density in kg/m³, or the volume correction
	// factor when only the VCF was requested
	Value float64

	// VCF is the last volume correction factor (process / reference)
	VCF float64

	Status     Status
	SubRange   SubRange
	Iterations int
	Restarts   int
}

// StandardToProcess computes the density at the configured process
// temperature from a density at the reference temperature of base.
//
// set selects the table B constant set; SubRangeAuto classifies rhoRef.
// The set actually used is returned. Intermediates are truncated to 8
// significant digits and alpha is rounded to 4, which changes results in
// the last digits and is kept for agreement with printed tables. On
// StatusFail the density is ErrorValue.
func (c *Correlation) StandardToProcess(rhoRef float64, base Base, set SubRange) (float64, SubRange, Status) {
	tb := tablesFor(base)
	fam, ok := tb.families[c.Table]
	if !ok || rhoRef <= 0 {
		return ErrorValue, set, StatusFail
	}

	temp := c.TempC
	if base == Base60F {
		temp = units.Convert(units.ClassTemperature, units.DegC, units.DegF, temp, false, 0)
	}

	status := StatusValid
	switch {
	case fam.density.contains(rhoRef, 0):
	case fam.density.contains(rhoRef, tb.densityBand):
		status = StatusExtrapolate
	default:
		return ErrorValue, set, StatusFail
	}
	switch {
	case tb.temp.contains(temp, 0):
	case tb.temp.contains(temp, tb.tempBand):
		status = worse(status, StatusExtrapolate)
	default:
		return ErrorValue, set, StatusFail
	}

	var alpha float64
	if c.Table == TableC {
		alpha = c.Alpha
		if base == Base60F {
			alpha /= 1.8
		}
		set = 0
	} else {
		if c.Table != TableB {
			set = 0
		} else if set < 0 || int(set) >= len(fam.sets) {
			set = subRangeOf(base, rhoRef)
		}
		k := fam.sets[set]
		a := trunc8(trunc8(k.k0/rhoRef) / rhoRef)
		a = trunc8(a + trunc8(k.k1/rhoRef))
		alpha = SigFig(a+k.k2, 4)
	}

	dt := trunc8(temp - tb.ref)
	adt := trunc8(alpha * dt)
	exponent := trunc8(adt * trunc8(1.0+trunc8(0.8*adt)))
	vcf := trunc8(math.Exp(-exponent))

	return trunc8(rhoRef * vcf), set, status
}

// Solve finds the reference density whose process density is rhoObs.
//
// Each step runs StandardToProcess on the current estimate, forms the VCF
// (7 significant digits) and divides the observed density by it. When the
// new estimate falls in a different table B sub-range the sequence starts
// again from rhoObs with the new constants. The loop stops when a step
// moves less than ConvergenceTolerance and fails after MaxIterations steps.
// With vcfOnly the first VCF is returned in Value.
func (c *Correlation) Solve(rhoObs float64, base Base, vcfOnly bool) (Result, error) {
	res := Result{Value: ErrorValue, Status: StatusFail, SubRange: SubRangeAuto}
	if rhoObs <= 0 {
		return res, ErrInvalidDensity
	}

	status := StatusValid
	est := rhoObs
	set := SubRangeAuto
	if c.Table == TableB {
		set = subRangeOf(base, est)
	}

	for i := 1; i <= MaxIterations; i++ {
		res.Iterations = i

		solved, used, st := c.StandardToProcess(est, base, set)
		if st == StatusFail {
			return res, fmt.Errorf("%w: %.4f kg/m³ at %.2f °C (table %c, %s)",
				ErrOutOfRange, est, c.TempC, c.Table, base)
		}
		set = used
		status = worse(status, st)

		vcf := SigFig(solved/est, 7)
		res.VCF = vcf
		if vcfOnly {
			res.Value, res.Status, res.SubRange = vcf, status, set
			return res, nil
		}

		next := SigFig(rhoObs/vcf, 7)

		if c.Table == TableB {
			if ns := subRangeOf(base, next); ns != set {
				set = ns
				est = rhoObs
				res.Restarts++
				continue
			}
		}

		if math.Abs(next-est) < ConvergenceTolerance {
			res.Value, res.Status, res.SubRange = next, status, set
			return res, nil
		}
		est = next
	}

	return res, fmt.Errorf("%w after %d iterations", ErrNoConvergence, MaxIterations)
}

// ProcessToStandard is Solve with the sentinel boundary: ErrorValue on any
// failure
func (c *Correlation) ProcessToStandard(rhoObs float64, base Base, vcfOnly bool) float64 {
	res, err := c.Solve(rhoObs, base, vcfOnly)
	if err != nil {
		return ErrorValue
	}
	return res.Value
}
