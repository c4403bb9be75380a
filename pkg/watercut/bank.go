// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package watercut turns oscillator frequency and temperature captures into
// a phase-aware, temperature compensated watercut.
//
// All state lives in a Bank. A Bank is not safe for concurrent use; the
// Analyzer owns one and serializes every cycle, sample and external access
// through a single goroutine.
package watercut

import (
	"github.com/Thermoquad/razor/pkg/api"
	"github.com/Thermoquad/razor/pkg/buffer"
	"github.com/Thermoquad/razor/pkg/units"
	"github.com/Thermoquad/razor/pkg/variable"
)

// Phase is the medium the sensor reads
type Phase uint8

// Phases
const (
	PhaseWater Phase = 0
	PhaseOil   Phase = 1
)

func (p Phase) String() string {
	if p == PhaseOil {
		return "oil"
	}
	return "water"
}

// MaxWaterPhase is the watercut reported while water phase is latched
const MaxWaterPhase = 100.0

// Capture is one frequency capture from the pulse counter with the
// readings taken alongside it
type Capture struct {
	PulseLo uint32
	PulseHi uint32
	Micros  uint32

	Temperature    float64 // °C, before offset
	ReflectedPower float64 // mV
	AnalogDensity  float64 // kg/m³ from the analog input
}

// Bank is the register bank: every process variable, configuration
// register, coil and the pipeline state
type Bank struct {
	Config      Config
	Diagnostics variable.Diagnostics

	Watercut       *variable.Var
	WatercutRaw    *variable.Var
	WatercutAvg    *variable.Var
	Temperature    *variable.Var
	TempAvg        *variable.Var
	Frequency      *variable.Var
	FreqAvg        *variable.Var
	ReflectedPower *variable.Var
	RPAvg          *variable.Var
	Density        *variable.Var
	DensityAnalog  *variable.Var
	DensityModbus  *variable.Var
	DensityAdj     *variable.Var
	AnalogOut      *variable.Var

	// Coils
	OilPhase bool
	Alarm    bool

	// Phase hold-over state
	Phase     Phase
	PrevPhase Phase
	Cycles    int
	Rollovers int

	// WCRawAvg is the leaky average of the raw watercut
	WCRawAvg float64

	wcBuf   *buffer.Ring
	tempBuf *buffer.Ring
	freqBuf *buffer.Ring
	rpBuf   *buffer.Ring

	samples          uint64
	tempResetPending bool
	saveRequested    bool

	converter units.Converter
	env       variable.Env
	registers []register
}

// New creates a bank from a configuration
func New(cfg Config) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bank{
		wcBuf:   buffer.New(buffer.DefaultCapacity),
		tempBuf: buffer.New(buffer.DefaultCapacity),
		freqBuf: buffer.New(buffer.DefaultCapacity),
		rpBuf:   buffer.New(buffer.DefaultCapacity),
	}
	b.env = variable.Env{
		Units:       &b.converter,
		Diagnostics: &b.Diagnostics,
		Dampen:      func() float64 { return b.Config.AODampen },
	}

	b.Watercut = variable.New(&b.env, "WATERCUT", units.ClassPercent, units.Percent, 100, 10000, variable.StatDampen)
	b.WatercutRaw = variable.New(&b.env, "WATERCUT_RAW", units.ClassPercent, units.Percent, 100, 10000, variable.StatNoBound)
	b.WatercutAvg = variable.New(&b.env, "WATERCUT_AVG", units.ClassPercent, units.Percent, 100, 10000, variable.StatNoBound)
	b.Temperature = variable.New(&b.env, "TEMPERATURE", units.ClassTemperature, units.DegC, 10, 1000, variable.StatNoBound)
	b.TempAvg = variable.New(&b.env, "TEMP_AVG", units.ClassTemperature, units.DegC, 10, 1000, variable.StatNoBound|variable.StatNoAlarm)
	b.Frequency = variable.New(&b.env, "FREQUENCY", units.ClassFrequency, units.MegaHertz, 100, 1000, variable.StatNoBound)
	b.FreqAvg = variable.New(&b.env, "FREQ_AVG", units.ClassFrequency, units.MegaHertz, 100, 1000, variable.StatNoBound|variable.StatNoAlarm)
	b.ReflectedPower = variable.New(&b.env, "REFLECTED_POWER", units.ClassVoltage, units.MilliVolts, 10, 1000, variable.StatNoBound|variable.StatNoAlarm)
	b.RPAvg = variable.New(&b.env, "RP_AVG", units.ClassVoltage, units.MilliVolts, 10, 1000, variable.StatNoBound|variable.StatNoAlarm)
	b.Density = variable.New(&b.env, "DENSITY", units.ClassMassPerVolume, units.KgPerMCubed, 10, 1000, variable.StatNoBound)
	b.DensityAnalog = variable.New(&b.env, "DENSITY_AI", units.ClassMassPerVolume, units.KgPerMCubed, 10, 1000, variable.StatNoBound|variable.StatNoAlarm)
	b.DensityModbus = variable.New(&b.env, "DENSITY_MODBUS", units.ClassMassPerVolume, units.KgPerMCubed, 10, 1000, variable.StatNoBound|variable.StatNoAlarm|variable.StatNaNImmune)
	b.DensityAdj = variable.New(&b.env, "DENSITY_ADJ", units.ClassPercent, units.Percent, 100, 10000, variable.StatNoBound|variable.StatNoAlarm)
	b.AnalogOut = variable.New(&b.env, "AO", units.ClassCurrent, units.MilliAmps, 1000, 1000, variable.StatNoAlarm)

	b.OilPhase = true
	b.Phase = PhaseOil
	b.PrevPhase = PhaseOil

	b.registers = b.buildRegisters()
	b.ApplyConfig(cfg)
	return b, nil
}

// ApplyConfig installs a configuration: variable limits, display units and
// the density correlation follow it. cfg must already be valid.
func (b *Bank) ApplyConfig(cfg Config) {
	b.Config = cfg

	table, err := api.ParseTable(cfg.APITable)
	if err != nil {
		table = api.TableA
	}
	b.converter.Density = api.Correlation{Table: table, Alpha: cfg.APIAlpha}.DensityConverter()

	b.Watercut.SetupUnit(units.Percent, MaxWaterPhase, 0, variable.DefaultLimit, -variable.DefaultLimit)
	b.Temperature.SetupUnit(units.DegC, variable.DefaultLimit, -variable.DefaultLimit, cfg.TempMax, cfg.TempMin)
	b.Frequency.SetupUnit(units.MegaHertz, variable.DefaultLimit, -variable.DefaultLimit, cfg.FreqHigh, cfg.FreqLow)
	b.Density.SetupUnit(units.KgPerMCubed, variable.DefaultLimit, -variable.DefaultLimit, cfg.DensityMax, cfg.DensityMin)
	b.AnalogOut.SetupUnit(units.MilliAmps, 24.0, 0.0, variable.DefaultLimit, -variable.DefaultLimit)

	if u, ok := units.Parse(cfg.TempUnit); ok {
		b.Temperature.SetUnit(u)
		b.TempAvg.SetUnit(u)
	}
	if u, ok := units.Parse(cfg.DensityUnit); ok {
		b.Density.SetUnit(u)
		b.DensityModbus.SetUnit(u)
	}
}

// RequestSave posts the "save now" signal
func (b *Bank) RequestSave() {
	b.saveRequested = true
}

// TakeSaveRequest returns and clears the "save now" signal
func (b *Bank) TakeSaveRequest() bool {
	r := b.saveRequested
	b.saveRequested = false
	return r
}

// Telemetry is a copy of the user-facing registers
type Telemetry struct {
	Watercut       float64
	WatercutRaw    float64
	WatercutAvg    float64
	Temperature    float64
	TempAvg        float64
	Frequency      float64
	ReflectedPower float64
	Density        float64
	DensityAdj     float64
	AnalogOut      float64
	OilPhase       bool
	Alarm          bool
	WatercutNaN    bool
	Diagnostics    variable.Diagnostics
}

// Telemetry returns the current user-facing values
func (b *Bank) Telemetry() Telemetry {
	return Telemetry{
		Watercut:       b.Watercut.Val,
		WatercutRaw:    b.WatercutRaw.Val,
		WatercutAvg:    b.WatercutAvg.Val,
		Temperature:    b.Temperature.Val,
		TempAvg:        b.TempAvg.Val,
		Frequency:      b.Frequency.Val,
		ReflectedPower: b.ReflectedPower.Val,
		Density:        b.Density.Val,
		DensityAdj:     b.DensityAdj.Val,
		AnalogOut:      b.AnalogOut.Val,
		OilPhase:       b.OilPhase,
		Alarm:          b.Alarm,
		WatercutNaN:    b.Watercut.IsNaN(),
		Diagnostics:    b.Diagnostics,
	}
}
