// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package units

// DensityFunc converts a density between two mass-per-volume units.
// tempC is the process temperature in °C.
type DensityFunc func(from, to Unit, value, tempC float64) float64

// Converter converts values between units. The zero value treats density
// like any other table class.
type Converter struct {
	// Density handles the mass-per-volume class when set
	Density DensityFunc
}

var defaultConverter Converter

// Convert converts with a converter that has no density correlation attached
func Convert(class Class, from, to Unit, value float64, scaleOnly bool, aux float64) float64 {
	return defaultConverter.Convert(class, from, to, value, scaleOnly, aux)
}

// Convert converts value from one unit to another within a class.
//
// Temperature only special-cases °F and °C; any other pair (K, °R) is
// returned unconverted. Density goes through the Density delegate because
// its units are referenced to different temperatures. Every other class
// normalizes to the class basis and back out through the unit table. When
// scaleOnly is set offsets are ignored, which is what differences and spans
// need. aux is the process temperature in °C, used by the density path only.
func (c *Converter) Convert(class Class, from, to Unit, value float64, scaleOnly bool, aux float64) float64 {
	if from == to {
		return value
	}

	switch class {
	case ClassTemperature:
		return convertTemperature(from, to, value, scaleOnly)

	case ClassMassPerVolume:
		if c != nil && c.Density != nil {
			return c.Density(from, to, value, aux)
		}
	}

	mult, offset := UnitCoeff(class, from)
	if scaleOnly {
		offset = 0
	}
	value = (value - offset) / mult

	mult, offset = UnitCoeff(class, to)
	if scaleOnly {
		offset = 0
	}
	return value*mult + offset
}

func convertTemperature(from, to Unit, value float64, scaleOnly bool) float64 {
	switch {
	case from == DegF && to == DegC:
		if scaleOnly {
			return value / 1.8
		}
		return (value - 32.0) / 1.8
	case from == DegC && to == DegF:
		if scaleOnly {
			return value * 1.8
		}
		return value*1.8 + 32.0
	}
	return value
}
