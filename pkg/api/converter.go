// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import "github.com/Thermoquad/razor/pkg/units"

// DensityConverter returns the mass-per-volume path for units.Converter.
//
// Plain density units (kg/m³, g/cc, kg/L, lb/ft³, lb/gal) are taken at the
// process temperature passed by the caller. kg/m³@15°C, API gravity and
// SG 60/60 are reference densities and go through the table correlation.
// A failed solve returns ErrorValue.
func (c Correlation) DensityConverter() units.DensityFunc {
	return func(from, to units.Unit, value, tempC float64) float64 {
		corr := c
		corr.TempC = tempC

		rho, ok := corr.toProcess(from, value)
		if !ok {
			return ErrorValue
		}
		out, ok := corr.fromProcess(to, rho)
		if !ok {
			return ErrorValue
		}
		return out
	}
}

// toProcess converts value in unit u to kg/m³ at the process temperature
func (c *Correlation) toProcess(u units.Unit, value float64) (float64, bool) {
	var base Base
	switch u {
	case units.KgPerMCubed15C:
		base = Base15C
	case units.DegAPI:
		value = APIToKgM3(value)
		base = Base60F
	case units.SpecificGravity60:
		value *= WaterDensity60F
		base = Base60F
	default:
		mult, offset := units.UnitCoeff(units.ClassMassPerVolume, u)
		return (value - offset) / mult, true
	}

	rho, _, st := c.StandardToProcess(value, base, SubRangeAuto)
	return rho, st != StatusFail
}

// fromProcess converts rho, kg/m³ at the process temperature, to unit u
func (c *Correlation) fromProcess(u units.Unit, rho float64) (float64, bool) {
	switch u {
	case units.KgPerMCubed15C:
		res, err := c.Solve(rho, Base15C, false)
		return res.Value, err == nil
	case units.DegAPI:
		res, err := c.Solve(rho, Base60F, false)
		if err != nil {
			return 0, false
		}
		return KgM3ToAPI(res.Value), true
	case units.SpecificGravity60:
		res, err := c.Solve(rho, Base60F, false)
		if err != nil {
			return 0, false
		}
		return res.Value / WaterDensity60F, true
	}
	mult, offset := units.UnitCoeff(units.ClassMassPerVolume, u)
	return rho*mult + offset, true
}
