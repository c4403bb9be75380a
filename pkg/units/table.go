// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package units

import "strings"

// Coeff converts the class basis to a unit: unit = basis*Mult + Offset
type Coeff struct {
	Class  Class
	Unit   Unit
	Mult   float64
	Offset float64
}

// Table is the static unit table. The basis of each class is the entry with
// multiplier 1 and offset 0 (°C, kg/m³, Hz, %, s, kPa, V, mA, m³, m³/h, kg).
var Table = []Coeff{
	// Temperature (only °F/°C are used by Convert; see Converter.Convert)
	{ClassTemperature, DegC, 1.0, 0.0},
	{ClassTemperature, DegF, 1.8, 32.0},
	{ClassTemperature, Kelvin, 1.0, 273.15},
	{ClassTemperature, Rankine, 1.8, 491.67},

	// Density at process temperature
	{ClassMassPerVolume, KgPerMCubed, 1.0, 0.0},
	{ClassMassPerVolume, GramsPerCC, 0.001, 0.0},
	{ClassMassPerVolume, KgPerLiter, 0.001, 0.0},
	{ClassMassPerVolume, PoundsPerFtCub, 0.0624279606, 0.0},
	{ClassMassPerVolume, PoundsPerGal, 0.00834540445, 0.0},

	// Frequency
	{ClassFrequency, Hertz, 1.0, 0.0},
	{ClassFrequency, KiloHertz, 1.0e-3, 0.0},
	{ClassFrequency, MegaHertz, 1.0e-6, 0.0},

	// Percent
	{ClassPercent, Percent, 1.0, 0.0},
	{ClassPercent, Fraction, 0.01, 0.0},
	{ClassPercent, PPM, 10000.0, 0.0},

	// Time
	{ClassTime, Seconds, 1.0, 0.0},
	{ClassTime, Milliseconds, 1000.0, 0.0},
	{ClassTime, Minutes, 1.0 / 60.0, 0.0},
	{ClassTime, Hours, 1.0 / 3600.0, 0.0},
	{ClassTime, Days, 1.0 / 86400.0, 0.0},

	// Pressure
	{ClassPressure, KPascal, 1.0, 0.0},
	{ClassPressure, Pascal, 1000.0, 0.0},
	{ClassPressure, MPascal, 0.001, 0.0},
	{ClassPressure, PSI, 0.145037738, 0.0},
	{ClassPressure, Bar, 0.01, 0.0},
	{ClassPressure, MBar, 10.0, 0.0},
	{ClassPressure, Atm, 0.00986923267, 0.0},
	{ClassPressure, KgCm2, 0.0101971621, 0.0},
	{ClassPressure, InH2O, 4.01463078, 0.0},
	{ClassPressure, InHg, 0.295299831, 0.0},
	{ClassPressure, MmHg, 7.50061683, 0.0},

	// Electrical
	{ClassVoltage, Volts, 1.0, 0.0},
	{ClassVoltage, MilliVolts, 1000.0, 0.0},
	{ClassCurrent, MilliAmps, 1.0, 0.0},
	{ClassCurrent, Amps, 0.001, 0.0},

	// Volume
	{ClassVolume, MCubed, 1.0, 0.0},
	{ClassVolume, Liters, 1000.0, 0.0},
	{ClassVolume, Gallons, 264.172052, 0.0},
	{ClassVolume, ImpGallons, 219.969157, 0.0},
	{ClassVolume, Barrels, 6.28981077, 0.0},
	{ClassVolume, FtCubed, 35.3146667, 0.0},

	// Volumetric flow
	{ClassVolumetricFlow, MCubedPerHour, 1.0, 0.0},
	{ClassVolumetricFlow, MCubedPerMin, 1.0 / 60.0, 0.0},
	{ClassVolumetricFlow, MCubedPerSec, 1.0 / 3600.0, 0.0},
	{ClassVolumetricFlow, LitersPerHour, 1000.0, 0.0},
	{ClassVolumetricFlow, LitersPerMin, 1000.0 / 60.0, 0.0},
	{ClassVolumetricFlow, GalPerMin, 264.172052 / 60.0, 0.0},
	{ClassVolumetricFlow, GalPerHour, 264.172052, 0.0},
	{ClassVolumetricFlow, GalPerDay, 264.172052 * 24.0, 0.0},
	{ClassVolumetricFlow, BarrelsPerMin, 6.28981077 / 60.0, 0.0},
	{ClassVolumetricFlow, BarrelsPerHour, 6.28981077, 0.0},
	{ClassVolumetricFlow, BarrelsPerDay, 6.28981077 * 24.0, 0.0},
	{ClassVolumetricFlow, FtCubedPerMin, 35.3146667 / 60.0, 0.0},

	// Mass
	{ClassMass, Kilograms, 1.0, 0.0},
	{ClassMass, Grams, 1000.0, 0.0},
	{ClassMass, MetricTons, 0.001, 0.0},
	{ClassMass, Pounds, 2.20462262, 0.0},
}

// UnitCoeff returns the multiplier and offset for a unit of a class.
// Unknown pairs return (1, 0), which makes the conversion a no-op.
func UnitCoeff(class Class, unit Unit) (mult, offset float64) {
	for _, c := range Table {
		if c.Class == class && c.Unit == unit {
			return c.Mult, c.Offset
		}
	}
	return 1.0, 0.0
}

// Known reports whether the table has an entry for the unit in the class
func Known(class Class, unit Unit) bool {
	for _, c := range Table {
		if c.Class == class && c.Unit == unit {
			return true
		}
	}
	return false
}

// ClassOf returns the first class that lists the unit
func ClassOf(unit Unit) (Class, bool) {
	switch unit {
	case SpecificGravity60, DegAPI, KgPerMCubed15C:
		return ClassMassPerVolume, true
	}
	for _, c := range Table {
		if c.Unit == unit {
			return c.Class, true
		}
	}
	return ClassNone, false
}

// ASCII spellings accepted on the command line
var aliases = map[string]Unit{
	"c":         DegC,
	"degc":      DegC,
	"f":         DegF,
	"degf":      DegF,
	"k":         Kelvin,
	"r":         Rankine,
	"api":       DegAPI,
	"sg":        SpecificGravity60,
	"sg60":      SpecificGravity60,
	"kg/m3":     KgPerMCubed,
	"kg/m3@15c": KgPerMCubed15C,
	"lb/ft3":    PoundsPerFtCub,
	"m3":        MCubed,
	"m3/h":      MCubedPerHour,
	"m3/min":    MCubedPerMin,
	"m3/s":      MCubedPerSec,
	"ft3":       FtCubed,
	"ft3/min":   FtCubedPerMin,
	"kg/cm2":    KgCm2,
	"percent":   Percent,
	"pct":       Percent,
}

// Parse resolves a unit from its display name or an ASCII alias
func Parse(s string) (Unit, bool) {
	if u, ok := Lookup(s); ok {
		return u, true
	}
	u, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return u, ok
}
