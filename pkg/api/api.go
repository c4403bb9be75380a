// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api converts petroleum densities between process temperature and a
// reference temperature (60 °F or 15 °C).
//
// Two correlations live here. The table correlation follows the API 11.1
// (1980) families A, B, C and D, solved with a capped fixed-point iteration.
// The simple correlation uses one thermal expansion constant and is what the
// watercut density correction uses. They give different answers and are not
// interchangeable.
package api

import (
	"errors"
	"math"
)

// ErrorValue is the sentinel returned by the legacy-shaped functions when a
// solve fails
const ErrorValue = -99.0

// WaterDensity60F is the density of water at 60 °F in kg/m³
const WaterDensity60F = 999.012

const apiNumerator = 141.5 * WaterDensity60F

var (
	// ErrOutOfRange is returned when the density or temperature is outside
	// every window of the active table
	ErrOutOfRange = errors.New("api: outside correlation range")

	// ErrNoConvergence is returned when the iteration cap is reached
	ErrNoConvergence = errors.New("api: correlation did not converge")

	// ErrInvalidDensity is returned for densities that are zero or negative
	ErrInvalidDensity = errors.New("api: density must be positive")
)

// KgM3ToAPI converts a density at 60 °F to API gravity. Returns ErrorValue
// for densities that are not positive.
func KgM3ToAPI(rho float64) float64 {
	if rho <= 0 {
		return ErrorValue
	}
	return apiNumerator/rho - 131.5
}

// APIToKgM3 converts API gravity to a density at 60 °F. The ErrorValue
// sentinel (and any gravity that would divide by zero or go negative)
// returns 0.
func APIToKgM3(api float64) float64 {
	if api == ErrorValue || api <= -131.5 {
		return 0
	}
	return apiNumerator / (api + 131.5)
}

// SigFig rounds x to n significant digits
func SigFig(x float64, n int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(n)-math.Ceil(math.Log10(math.Abs(x))))
	return math.Round(x*p) / p
}

// Truncate drops everything past n significant digits
func Truncate(x float64, n int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(n)-math.Ceil(math.Log10(math.Abs(x))))
	return math.Trunc(x*p) / p
}

func trunc8(x float64) float64 {
	return Truncate(x, 8)
}
