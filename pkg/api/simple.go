// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"fmt"
	"math"
)

const (
	// SimpleK0 is the single expansion constant of the simple correlation
	SimpleK0 = 613.9723

	// SimpleTolerance is the convergence step of DensityAt15C, kg/m³
	SimpleTolerance = 0.01

	// SimpleMaxIterations bounds DensityAt15C
	SimpleMaxIterations = 100
)

// DensityAtTemp converts a density at 15 °C to the density at tempC with
// the simple correlation. Returns ErrorValue for densities that are not
// positive.
func DensityAtTemp(rho15, tempC float64) float64 {
	if rho15 <= 0 {
		return ErrorValue
	}
	alpha := SimpleK0 / rho15 / rho15
	dt := tempC - 15.0
	return rho15 * math.Exp(-alpha*dt*(1.0+0.8*alpha*dt))
}

// DensityAt15C inverts DensityAtTemp by fixed-point iteration.
//
// The iteration is bounded by SimpleMaxIterations; past the cap the last
// estimate is returned together with ErrNoConvergence.
func DensityAt15C(rhoT, tempC float64) (float64, error) {
	if rhoT <= 0 {
		return ErrorValue, ErrInvalidDensity
	}

	est := rhoT
	for i := 0; i < SimpleMaxIterations; i++ {
		vcf := DensityAtTemp(est, tempC) / est
		next := rhoT / vcf
		if math.Abs(next-est) < SimpleTolerance {
			return next, nil
		}
		est = next
	}
	return est, fmt.Errorf("%w: simple correlation at %.2f °C", ErrNoConvergence, tempC)
}
