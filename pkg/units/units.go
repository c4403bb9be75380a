// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package units converts engineering values between unit codes of the same
// physical class.
//
// Unit codes follow the HART common-table numbering where one exists, so the
// values a register table exposes can be handed to field tooling unchanged.
// Units without a HART code live in the 240+ range.
package units

// Class is the physical dimension of a value
type Class uint8

// Physical classes
const (
	ClassNone Class = iota
	ClassTemperature
	ClassMassPerVolume
	ClassFrequency
	ClassPercent
	ClassTime
	ClassPressure
	ClassVoltage
	ClassCurrent
	ClassVolume
	ClassVolumetricFlow
	ClassMass
)

// Unit is a unit code
type Unit uint16

// UnitNone marks a dimensionless value
const UnitNone Unit = 0

// Temperature
const (
	DegC    Unit = 32
	DegF    Unit = 33
	Rankine Unit = 34
	Kelvin  Unit = 35
)

// Pressure
const (
	InH2O   Unit = 1
	InHg    Unit = 2
	MmHg    Unit = 5
	PSI     Unit = 6
	Bar     Unit = 7
	MBar    Unit = 8
	KgCm2   Unit = 10
	Pascal  Unit = 11
	KPascal Unit = 12
	Atm     Unit = 14
	MPascal Unit = 237
)

// Volumetric flow
const (
	FtCubedPerMin  Unit = 15
	GalPerMin      Unit = 16
	LitersPerMin   Unit = 17
	MCubedPerHour  Unit = 19
	MCubedPerSec   Unit = 28
	LitersPerHour  Unit = 138
	MCubedPerMin   Unit = 131
	BarrelsPerMin  Unit = 133
	BarrelsPerHour Unit = 134
	BarrelsPerDay  Unit = 135
	GalPerHour     Unit = 136
	GalPerDay      Unit = 235
)

// Frequency
const (
	Hertz     Unit = 38
	KiloHertz Unit = 244
	MegaHertz Unit = 245
)

// Electrical
const (
	MilliVolts Unit = 36
	MilliAmps  Unit = 39
	Volts      Unit = 58
	Amps       Unit = 246
)

// Volume
const (
	Gallons    Unit = 40
	Liters     Unit = 41
	ImpGallons Unit = 42
	MCubed     Unit = 43
	Barrels    Unit = 46
	FtCubed    Unit = 112
)

// Time
const (
	Minutes      Unit = 50
	Seconds      Unit = 51
	Hours        Unit = 52
	Days         Unit = 53
	Milliseconds Unit = 247
)

// Percent and fractions
const (
	Percent  Unit = 57
	Fraction Unit = 248
	PPM      Unit = 249
)

// Mass
const (
	Grams      Unit = 60
	Kilograms  Unit = 61
	MetricTons Unit = 62
	Pounds     Unit = 63
)

// Density at process temperature
const (
	GramsPerCC     Unit = 91
	KgPerMCubed    Unit = 92
	PoundsPerGal   Unit = 93
	PoundsPerFtCub Unit = 94
	KgPerLiter     Unit = 96
)

// Density referenced to a standard temperature. These are not affine units
// of density at process temperature; converting to or from them goes through
// the density correlation.
const (
	SpecificGravity60 Unit = 90  // specific gravity 60/60 °F
	DegAPI            Unit = 104 // API gravity at 60 °F
	KgPerMCubed15C    Unit = 240 // kg/m³ at 15 °C
)

var unitNames = map[Unit]string{
	UnitNone:          "",
	DegC:              "°C",
	DegF:              "°F",
	Rankine:           "°R",
	Kelvin:            "K",
	InH2O:             "inH2O",
	InHg:              "inHg",
	MmHg:              "mmHg",
	PSI:               "psi",
	Bar:               "bar",
	MBar:              "mbar",
	KgCm2:             "kg/cm²",
	Pascal:            "Pa",
	KPascal:           "kPa",
	Atm:               "atm",
	MPascal:           "MPa",
	FtCubedPerMin:     "ft³/min",
	GalPerMin:         "gal/min",
	LitersPerMin:      "L/min",
	MCubedPerHour:     "m³/h",
	MCubedPerSec:      "m³/s",
	LitersPerHour:     "L/h",
	MCubedPerMin:      "m³/min",
	BarrelsPerMin:     "bbl/min",
	BarrelsPerHour:    "bbl/h",
	BarrelsPerDay:     "bbl/d",
	GalPerHour:        "gal/h",
	GalPerDay:         "gal/d",
	Hertz:             "Hz",
	KiloHertz:         "kHz",
	MegaHertz:         "MHz",
	MilliVolts:        "mV",
	MilliAmps:         "mA",
	Volts:             "V",
	Amps:              "A",
	Gallons:           "gal",
	Liters:            "L",
	ImpGallons:        "impgal",
	MCubed:            "m³",
	Barrels:           "bbl",
	FtCubed:           "ft³",
	Minutes:           "min",
	Seconds:           "s",
	Hours:             "h",
	Days:              "d",
	Milliseconds:      "ms",
	Percent:           "%",
	Fraction:          "frac",
	PPM:               "ppm",
	Grams:             "g",
	Kilograms:         "kg",
	MetricTons:        "t",
	Pounds:            "lb",
	GramsPerCC:        "g/cc",
	KgPerMCubed:       "kg/m³",
	PoundsPerGal:      "lb/gal",
	PoundsPerFtCub:    "lb/ft³",
	KgPerLiter:        "kg/L",
	SpecificGravity60: "SG60",
	DegAPI:            "°API",
	KgPerMCubed15C:    "kg/m³@15°C",
}

// Name returns the display name of a unit, or "?" for unknown codes
func Name(u Unit) string {
	if n, ok := unitNames[u]; ok {
		return n
	}
	return "?"
}

// Lookup returns the unit code for a display name
func Lookup(name string) (Unit, bool) {
	for u, n := range unitNames {
		if n == name && n != "" {
			return u, true
		}
	}
	return UnitNone, false
}

// String returns the class name
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTemperature:
		return "temperature"
	case ClassMassPerVolume:
		return "mass_per_volume"
	case ClassFrequency:
		return "frequency"
	case ClassPercent:
		return "percent"
	case ClassTime:
		return "time"
	case ClassPressure:
		return "pressure"
	case ClassVoltage:
		return "voltage"
	case ClassCurrent:
		return "current"
	case ClassVolume:
		return "volume"
	case ClassVolumetricFlow:
		return "volumetric_flow"
	case ClassMass:
		return "mass"
	default:
		return "unknown"
	}
}
