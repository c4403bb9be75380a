// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package watercut

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Thermoquad/razor/pkg/variable"
)

// Register addresses
const (
	// Coils
	RegOilPhase uint16 = 1
	RegAlarm    uint16 = 2

	// Process values
	RegWatercut       uint16 = 100
	RegWatercutRaw    uint16 = 101
	RegWatercutAvg    uint16 = 102
	RegTemperature    uint16 = 103
	RegTempAvg        uint16 = 104
	RegFrequency      uint16 = 105
	RegFreqAvg        uint16 = 106
	RegReflectedPower uint16 = 107
	RegRPAvg          uint16 = 108
	RegDensity        uint16 = 109
	RegDensityAdj     uint16 = 110
	RegAnalogOut      uint16 = 111
	RegDiagnostics    uint16 = 112
	RegDensityModbus  uint16 = 113
	RegTempReset      uint16 = 114

	// Configuration
	RegFreqLow           uint16 = 200
	RegFreqHigh          uint16 = 201
	RegPhaseP1           uint16 = 202
	RegPhaseP0           uint16 = 203
	RegPhaseHoldCycles   uint16 = 204
	RegFreqF1            uint16 = 205
	RegFreqF0            uint16 = 206
	RegOilIndex          uint16 = 207
	RegTempOffset        uint16 = 208
	RegCutoff            uint16 = 209
	RegAverageCount      uint16 = 210
	RegOilAdjust         uint16 = 211
	RegAODampen          uint16 = 212
	RegAOLRV             uint16 = 213
	RegAOURV             uint16 = 214
	RegAOFailMode        uint16 = 215
	RegDensityCorrection uint16 = 216
	RegDensitySource     uint16 = 217
	RegDensityManual     uint16 = 218
	RegDensityCalRef     uint16 = 219
	RegDensityD1         uint16 = 220
	RegDensityD2         uint16 = 221
	RegDensityOrder      uint16 = 222
	RegOilPhaseCeiling   uint16 = 223
	RegTempMin           uint16 = 224
	RegTempMax           uint16 = 225
	RegDensityMin        uint16 = 226
	RegDensityMax        uint16 = 227

	// RegTempsOil is the first of NumBreakpoints breakpoint registers
	RegTempsOil uint16 = 230

	// RegCurves is the first curve coefficient; row r, coefficient i lives
	// at RegCurves + 4*r + i
	RegCurves uint16 = 240
)

var (
	// ErrUnknownRegister is returned for addresses that are not mapped
	ErrUnknownRegister = errors.New("unknown register")

	// ErrReadOnly is returned when writing a read-only register
	ErrReadOnly = errors.New("register is read-only")
)

type register struct {
	addr uint16
	name string
	get  func() float64

	// setConfig edits a copy of the configuration, which is validated and
	// applied as a whole; setLive writes a process input directly
	setConfig func(c *Config, v float64)
	setLive   func(v float64)
}

// RegisterInfo describes a mapped register
type RegisterInfo struct {
	Addr     uint16
	Name     string
	Writable bool
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func varReg(addr uint16, v *variable.Var) register {
	return register{addr: addr, name: v.Name, get: func() float64 { return v.Val }}
}

func floatReg(addr uint16, name string, field func(c *Config) *float64, cfg *Config) register {
	return register{
		addr:      addr,
		name:      name,
		get:       func() float64 { return *field(cfg) },
		setConfig: func(c *Config, v float64) { *field(c) = v },
	}
}

func intReg(addr uint16, name string, field func(c *Config) *int, cfg *Config) register {
	return register{
		addr:      addr,
		name:      name,
		get:       func() float64 { return float64(*field(cfg)) },
		setConfig: func(c *Config, v float64) { *field(c) = int(math.Round(v)) },
	}
}

func (b *Bank) buildRegisters() []register {
	cfg := &b.Config
	regs := []register{
		{addr: RegOilPhase, name: "COIL_OIL_PHASE", get: func() float64 { return boolf(b.OilPhase) }},
		{addr: RegAlarm, name: "COIL_ALARM", get: func() float64 { return boolf(b.Alarm) }},

		varReg(RegWatercut, b.Watercut),
		varReg(RegWatercutRaw, b.WatercutRaw),
		varReg(RegWatercutAvg, b.WatercutAvg),
		varReg(RegTemperature, b.Temperature),
		varReg(RegTempAvg, b.TempAvg),
		varReg(RegFrequency, b.Frequency),
		varReg(RegFreqAvg, b.FreqAvg),
		varReg(RegReflectedPower, b.ReflectedPower),
		varReg(RegRPAvg, b.RPAvg),
		varReg(RegDensity, b.Density),
		varReg(RegDensityAdj, b.DensityAdj),
		varReg(RegAnalogOut, b.AnalogOut),
		{addr: RegDiagnostics, name: "DIAGNOSTICS", get: func() float64 { return float64(b.Diagnostics) }},
		{
			addr:    RegDensityModbus,
			name:    b.DensityModbus.Name,
			get:     func() float64 { return b.DensityModbus.Val },
			setLive: func(v float64) { b.DensityModbus.Update(v, true) },
		},
		{
			addr: RegTempReset,
			name: "TEMP_AVG_RESET",
			get:  func() float64 { return boolf(b.tempResetPending) },
			setLive: func(v float64) {
				if v != 0 {
					b.RequestTempReset()
				}
			},
		},

		floatReg(RegFreqLow, "FREQ_LOW", func(c *Config) *float64 { return &c.FreqLow }, cfg),
		floatReg(RegFreqHigh, "FREQ_HIGH", func(c *Config) *float64 { return &c.FreqHigh }, cfg),
		floatReg(RegPhaseP1, "PHASE_P1", func(c *Config) *float64 { return &c.PhaseP1 }, cfg),
		floatReg(RegPhaseP0, "PHASE_P0", func(c *Config) *float64 { return &c.PhaseP0 }, cfg),
		intReg(RegPhaseHoldCycles, "PHASE_HOLD_CYCLES", func(c *Config) *int { return &c.PhaseHoldCycles }, cfg),
		floatReg(RegFreqF1, "FREQ_F1", func(c *Config) *float64 { return &c.FreqF1 }, cfg),
		floatReg(RegFreqF0, "FREQ_F0", func(c *Config) *float64 { return &c.FreqF0 }, cfg),
		floatReg(RegOilIndex, "OIL_INDEX", func(c *Config) *float64 { return &c.OilIndex }, cfg),
		floatReg(RegTempOffset, "TEMP_OFFSET", func(c *Config) *float64 { return &c.TempOffset }, cfg),
		floatReg(RegCutoff, "CUTOFF", func(c *Config) *float64 { return &c.Cutoff }, cfg),
		intReg(RegAverageCount, "AVERAGE_COUNT", func(c *Config) *int { return &c.AverageCount }, cfg),
		floatReg(RegOilAdjust, "OIL_ADJUST", func(c *Config) *float64 { return &c.OilAdjust }, cfg),
		floatReg(RegAODampen, "AO_DAMPEN", func(c *Config) *float64 { return &c.AODampen }, cfg),
		floatReg(RegAOLRV, "AO_LRV", func(c *Config) *float64 { return &c.AOLRV }, cfg),
		floatReg(RegAOURV, "AO_URV", func(c *Config) *float64 { return &c.AOURV }, cfg),
		{
			addr:      RegAOFailMode,
			name:      "AO_FAIL_MODE",
			get:       func() float64 { return float64(cfg.AOFailMode) },
			setConfig: func(c *Config, v float64) { c.AOFailMode = FailMode(math.Round(v)) },
		},
		{
			addr:      RegDensityCorrection,
			name:      "DENSITY_CORRECTION",
			get:       func() float64 { return boolf(cfg.DensityCorrection) },
			setConfig: func(c *Config, v float64) { c.DensityCorrection = v != 0 },
		},
		{
			addr:      RegDensitySource,
			name:      "DENSITY_SOURCE",
			get:       func() float64 { return float64(cfg.DensitySource) },
			setConfig: func(c *Config, v float64) { c.DensitySource = DensitySource(math.Round(v)) },
		},
		floatReg(RegDensityManual, "DENSITY_MANUAL", func(c *Config) *float64 { return &c.DensityManual }, cfg),
		floatReg(RegDensityCalRef, "DENSITY_CAL_REF", func(c *Config) *float64 { return &c.DensityCalRef }, cfg),
		floatReg(RegDensityD1, "DENSITY_D1", func(c *Config) *float64 { return &c.DensityD1 }, cfg),
		floatReg(RegDensityD2, "DENSITY_D2", func(c *Config) *float64 { return &c.DensityD2 }, cfg),
		intReg(RegDensityOrder, "DENSITY_ORDER", func(c *Config) *int { return &c.DensityOrder }, cfg),
		floatReg(RegOilPhaseCeiling, "OIL_PHASE_CEILING", func(c *Config) *float64 { return &c.OilPhaseCeiling }, cfg),
		floatReg(RegTempMin, "TEMP_MIN", func(c *Config) *float64 { return &c.TempMin }, cfg),
		floatReg(RegTempMax, "TEMP_MAX", func(c *Config) *float64 { return &c.TempMax }, cfg),
		floatReg(RegDensityMin, "DENSITY_MIN", func(c *Config) *float64 { return &c.DensityMin }, cfg),
		floatReg(RegDensityMax, "DENSITY_MAX", func(c *Config) *float64 { return &c.DensityMax }, cfg),
	}

	for i := 0; i < NumBreakpoints; i++ {
		i := i
		regs = append(regs, floatReg(RegTempsOil+uint16(i), fmt.Sprintf("TEMPS_OIL_%d", i),
			func(c *Config) *float64 { return &c.TempsOil[i] }, cfg))
	}
	for r := 0; r < 2*NumBreakpoints; r++ {
		for k := 0; k < 4; k++ {
			r, k := r, k
			regs = append(regs, floatReg(RegCurves+uint16(4*r+k), fmt.Sprintf("CURVE_%d_%d", r, k),
				func(c *Config) *float64 { return &c.Curves[r][k] }, cfg))
		}
	}

	sort.Slice(regs, func(i, j int) bool { return regs[i].addr < regs[j].addr })
	return regs
}

func (b *Bank) find(addr uint16) (*register, error) {
	i := sort.Search(len(b.registers), func(i int) bool { return b.registers[i].addr >= addr })
	if i < len(b.registers) && b.registers[i].addr == addr {
		return &b.registers[i], nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownRegister, addr)
}

// Read returns the value of a register. Process values are in their display
// unit.
func (b *Bank) Read(addr uint16) (float64, error) {
	r, err := b.find(addr)
	if err != nil {
		return 0, err
	}
	return r.get(), nil
}

// Write sets a register. Configuration writes are validated as a whole
// configuration, applied and followed by a save request.
func (b *Bank) Write(addr uint16, value float64) error {
	r, err := b.find(addr)
	if err != nil {
		return err
	}

	switch {
	case r.setConfig != nil:
		cfg := b.Config
		r.setConfig(&cfg, value)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("register %s: %w", r.name, err)
		}
		b.ApplyConfig(cfg)
		b.RequestSave()
	case r.setLive != nil:
		r.setLive(value)
	default:
		return fmt.Errorf("%w: %s", ErrReadOnly, r.name)
	}
	return nil
}

// Lookup returns the address of a register by name
func (b *Bank) Lookup(name string) (uint16, bool) {
	for _, r := range b.registers {
		if r.name == name {
			return r.addr, true
		}
	}
	return 0, false
}

// Registers lists the register map in address order
func (b *Bank) Registers() []RegisterInfo {
	out := make([]RegisterInfo, len(b.registers))
	for i, r := range b.registers {
		out[i] = RegisterInfo{Addr: r.addr, Name: r.name, Writable: r.setConfig != nil || r.setLive != nil}
	}
	return out
}
