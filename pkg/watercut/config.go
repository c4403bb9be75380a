// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/Thermoquad/razor/pkg/api"
	"github.com/Thermoquad/razor/pkg/units"
)

// DensitySource selects where the working density comes from
type DensitySource int

// Density sources
const (
	DensityAnalog DensitySource = iota
	DensityModbus
	DensityManual
)

func (s DensitySource) String() string {
	switch s {
	case DensityAnalog:
		return "analog"
	case DensityModbus:
		return "modbus"
	case DensityManual:
		return "manual"
	}
	return fmt.Sprintf("DensitySource(%d)", int(s))
}

// FailMode selects the analog output value after a failed cycle
type FailMode int

// Analog output fail-safe modes
const (
	FailHold FailMode = iota
	FailHigh
	FailLow
)

// NumBreakpoints is the number of oil curve temperature breakpoints
const NumBreakpoints = 3

// HighCurveOffset is the row offset of the high-watercut curve family
const HighCurveOffset = NumBreakpoints

// Config holds the configuration registers of the analyzer
type Config struct {
	// Phase detection: water when the frequency leaves [FreqLow, FreqHigh]
	// or the reflected power exceeds PhaseP1*freq + PhaseP0
	FreqLow         float64 `mapstructure:"freq_low" yaml:"freq_low" cbor:"1,keyasint"`
	FreqHigh        float64 `mapstructure:"freq_high" yaml:"freq_high" cbor:"2,keyasint"`
	PhaseP1         float64 `mapstructure:"phase_p1" yaml:"phase_p1" cbor:"3,keyasint"`
	PhaseP0         float64 `mapstructure:"phase_p0" yaml:"phase_p0" cbor:"4,keyasint"`
	PhaseHoldCycles int     `mapstructure:"phase_hold_cycles" yaml:"phase_hold_cycles" cbor:"5,keyasint"`

	// Frequency correction: freq + FreqF1*T + FreqF0 + OilIndex
	FreqF1   float64 `mapstructure:"freq_f1" yaml:"freq_f1" cbor:"6,keyasint"`
	FreqF0   float64 `mapstructure:"freq_f0" yaml:"freq_f0" cbor:"7,keyasint"`
	OilIndex float64 `mapstructure:"oil_index" yaml:"oil_index" cbor:"8,keyasint"`

	TempOffset float64 `mapstructure:"temp_offset" yaml:"temp_offset" cbor:"9,keyasint"`
	TempMin    float64 `mapstructure:"temp_min" yaml:"temp_min" cbor:"10,keyasint"`
	TempMax    float64 `mapstructure:"temp_max" yaml:"temp_max" cbor:"11,keyasint"`

	// Oil curves. Rows 0..2 belong to TempsOil; rows 3..5 are the high
	// watercut family used above Cutoff. Coefficients are highest order first.
	TempsOil [NumBreakpoints]float64        `mapstructure:"temps_oil" yaml:"temps_oil" cbor:"12,keyasint"`
	Curves   [2 * NumBreakpoints][4]float64 `mapstructure:"curves" yaml:"curves" cbor:"13,keyasint"`
	Cutoff   float64                        `mapstructure:"cutoff" yaml:"cutoff" cbor:"14,keyasint"`

	AverageCount int     `mapstructure:"average_count" yaml:"average_count" cbor:"15,keyasint"`
	OilAdjust    float64 `mapstructure:"oil_adjust" yaml:"oil_adjust" cbor:"16,keyasint"`

	// Density correction
	DensityCorrection bool          `mapstructure:"density_correction" yaml:"density_correction" cbor:"17,keyasint"`
	DensitySource     DensitySource `mapstructure:"density_source" yaml:"density_source" cbor:"18,keyasint"`
	DensityManual     float64       `mapstructure:"density_manual" yaml:"density_manual" cbor:"19,keyasint"`
	DensityCalRef     float64       `mapstructure:"density_cal_ref" yaml:"density_cal_ref" cbor:"20,keyasint"`
	DensityD1         float64       `mapstructure:"density_d1" yaml:"density_d1" cbor:"21,keyasint"`
	DensityD2         float64       `mapstructure:"density_d2" yaml:"density_d2" cbor:"22,keyasint"`
	DensityOrder      int           `mapstructure:"density_order" yaml:"density_order" cbor:"23,keyasint"`
	OilPhaseCeiling   float64       `mapstructure:"oil_phase_ceiling" yaml:"oil_phase_ceiling" cbor:"24,keyasint"`
	DensityMin        float64       `mapstructure:"density_min" yaml:"density_min" cbor:"25,keyasint"`
	DensityMax        float64       `mapstructure:"density_max" yaml:"density_max" cbor:"26,keyasint"`

	// Analog output
	AODampen   float64  `mapstructure:"ao_dampen" yaml:"ao_dampen" cbor:"27,keyasint"`
	AOLRV      float64  `mapstructure:"ao_lrv" yaml:"ao_lrv" cbor:"28,keyasint"`
	AOURV      float64  `mapstructure:"ao_urv" yaml:"ao_urv" cbor:"29,keyasint"`
	AOFailMode FailMode `mapstructure:"ao_fail_mode" yaml:"ao_fail_mode" cbor:"30,keyasint"`
	AOFailHigh float64  `mapstructure:"ao_fail_high" yaml:"ao_fail_high" cbor:"31,keyasint"`
	AOFailLow  float64  `mapstructure:"ao_fail_low" yaml:"ao_fail_low" cbor:"32,keyasint"`

	// Table correlation used to display density in reference units
	APITable string  `mapstructure:"api_table" yaml:"api_table" cbor:"33,keyasint"`
	APIAlpha float64 `mapstructure:"api_alpha" yaml:"api_alpha" cbor:"34,keyasint"`

	TempUnit    string `mapstructure:"temp_unit" yaml:"temp_unit" cbor:"35,keyasint"`
	DensityUnit string `mapstructure:"density_unit" yaml:"density_unit" cbor:"36,keyasint"`

	// Clear the temperature average every night at 23:59:57
	TempResetDaily bool `mapstructure:"temp_reset_daily" yaml:"temp_reset_daily" cbor:"37,keyasint"`
}

// DefaultConfig returns the factory configuration
func DefaultConfig() Config {
	return Config{
		FreqLow:         400.0,
		FreqHigh:        800.0,
		PhaseP1:         0.0,
		PhaseP0:         1000.0,
		PhaseHoldCycles: 5,

		TempMin: -20.0,
		TempMax: 150.0,

		TempsOil: [NumBreakpoints]float64{15.556, 37.778, 60.0},

		AverageCount: 10,

		DensitySource:   DensityManual,
		DensityManual:   850.0,
		DensityCalRef:   850.0,
		DensityOrder:    1,
		OilPhaseCeiling: 0.0,
		DensityMin:      600.0,
		DensityMax:      1200.0,

		AODampen:   0.0,
		AOLRV:      0.0,
		AOURV:      100.0,
		AOFailMode: FailHigh,
		AOFailHigh: 22.0,
		AOFailLow:  3.6,

		APITable: "A",

		TempUnit:    "°C",
		DensityUnit: "kg/m³",

		TempResetDaily: true,
	}
}

// ErrInvalidConfig is wrapped by every Validate error
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if err := c.checkFinite(); err != nil {
		return err
	}
	if c.AverageCount < 1 {
		return fmt.Errorf("%w: average_count must be at least 1, got %d", ErrInvalidConfig, c.AverageCount)
	}
	if c.PhaseHoldCycles < 1 {
		return fmt.Errorf("%w: phase_hold_cycles must be at least 1, got %d", ErrInvalidConfig, c.PhaseHoldCycles)
	}
	for i := 1; i < NumBreakpoints; i++ {
		if c.TempsOil[i] <= c.TempsOil[i-1] {
			return fmt.Errorf("%w: temps_oil must be strictly ascending, got %v", ErrInvalidConfig, c.TempsOil)
		}
	}
	if c.AOURV == c.AOLRV {
		return fmt.Errorf("%w: ao_urv and ao_lrv must differ", ErrInvalidConfig)
	}
	if c.DensityOrder < 0 || c.DensityOrder > 2 {
		return fmt.Errorf("%w: density_order must be 0, 1 or 2, got %d", ErrInvalidConfig, c.DensityOrder)
	}
	if c.DensitySource < DensityAnalog || c.DensitySource > DensityManual {
		return fmt.Errorf("%w: unknown density_source %d", ErrInvalidConfig, c.DensitySource)
	}
	if c.AOFailMode < FailHold || c.AOFailMode > FailLow {
		return fmt.Errorf("%w: unknown ao_fail_mode %d", ErrInvalidConfig, c.AOFailMode)
	}
	if _, err := api.ParseTable(c.APITable); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if u, ok := units.Parse(c.TempUnit); !ok || !units.Known(units.ClassTemperature, u) {
		return fmt.Errorf("%w: unknown temperature unit %q", ErrInvalidConfig, c.TempUnit)
	}
	u, ok := units.Parse(c.DensityUnit)
	if !ok {
		return fmt.Errorf("%w: unknown density unit %q", ErrInvalidConfig, c.DensityUnit)
	}
	if class, _ := units.ClassOf(u); class != units.ClassMassPerVolume {
		return fmt.Errorf("%w: %q is not a density unit", ErrInvalidConfig, c.DensityUnit)
	}
	return nil
}

// checkFinite rejects NaN and infinities in every float field, including
// the breakpoint and curve arrays
func (c *Config) checkFinite() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if finite(v.Field(i)) {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" {
			name = t.Field(i).Name
		}
		return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, name)
	}
	return nil
}

func finite(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if !finite(v.Index(i)) {
				return false
			}
		}
	}
	return true
}
