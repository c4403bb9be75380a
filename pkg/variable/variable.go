// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package variable implements the process variable: the only path by which a
// measured or configured quantity is written.
//
// A Var carries three views of one value. BaseVal is the value as received,
// CalcVal is the value in the internal calculation unit after bounds
// enforcement, and Val is the user-facing value in the display unit, damped
// and rounded when configured. Bounds clamp; alarms only flag.
package variable

import (
	"math"

	"github.com/Thermoquad/razor/pkg/units"
)

// Stat is the status bit-field of a variable
type Stat uint32

// Status bits
const (
	StatDampen Stat = 1 << iota
	StatNoBound
	StatNoAlarm
	StatNaN
	StatBoundHi
	StatBoundLo
	StatAlarmHi
	StatAlarmLo
	StatRound
	StatRoll
	StatAux
	StatNaNImmune
)

// Bits a caller may configure; the rest are derived by Update
const (
	statConfig  = StatDampen | StatNoBound | StatNoAlarm | StatRound | StatRoll | StatAux | StatNaNImmune
	statDerived = StatNaN | StatBoundHi | StatBoundLo | StatAlarmHi | StatAlarmLo
)

const (
	// DefaultLimit is the magnitude of the bounds and alarms a new variable gets
	DefaultLimit = 1.0e9

	// Tolerance is the dead band of the alarm comparator and the change
	// threshold for the post-update hook
	Tolerance = 0.0001
)

// Converter converts values between units
type Converter interface {
	Convert(class units.Class, from, to units.Unit, value float64, scaleOnly bool, aux float64) float64
}

// Env is shared by every variable of one register bank
type Env struct {
	Units       Converter
	Diagnostics *Diagnostics

	// Dampen returns the damping time constant in seconds (REG_AO_DAMPEN)
	Dampen func() float64
}

// Hook is called around Update
type Hook func(v *Var)

// Var is a process variable
type Var struct {
	Name string

	BaseVal float64
	CalcVal float64
	Val     float64

	Class     units.Class
	Unit      units.Unit
	CalcUnit  units.Unit
	Scale     float64
	ScaleLong float64

	BoundHi float64
	BoundLo float64
	AlarmHi float64
	AlarmLo float64

	Stat Stat

	// Aux is forwarded to the unit converter; density variables carry the
	// process temperature in °C here
	Aux float64

	PreUpdate  Hook
	PostUpdate Hook

	env    *Env
	damped float64
	primed bool
}

// New creates and initializes a variable
func New(env *Env, name string, class units.Class, calcUnit units.Unit, scale, scaleLong float64, flags Stat) *Var {
	v := &Var{Name: name}
	v.Initialize(env, class, calcUnit, scale, scaleLong, flags)
	return v
}

// Initialize resets the variable to its static default configuration
func (v *Var) Initialize(env *Env, class units.Class, calcUnit units.Unit, scale, scaleLong float64, flags Stat) {
	v.env = env
	v.Stat = flags & statConfig
	v.Class = class
	v.Unit = calcUnit
	v.CalcUnit = calcUnit
	v.Scale = scale
	v.ScaleLong = scaleLong

	v.BaseVal = 0
	v.CalcVal = 0
	v.Val = 0
	v.damped = 0
	v.primed = false

	v.BoundHi = DefaultLimit
	v.BoundLo = -DefaultLimit
	v.AlarmHi = DefaultLimit
	v.AlarmLo = -DefaultLimit

	if v.Stat&StatRoll != 0 {
		v.BoundLo = 0
	}
}

// SetupUnit sets bounds and alarms. Limits are always expressed in the
// calculation unit, so the call only takes effect when displayUnit is the
// calculation unit.
func (v *Var) SetupUnit(displayUnit units.Unit, upper, lower, alarmHi, alarmLo float64) bool {
	if displayUnit != v.CalcUnit {
		return false
	}
	v.Unit = displayUnit
	v.BoundHi = upper
	v.BoundLo = lower
	v.AlarmHi = alarmHi
	v.AlarmLo = alarmLo

	if v.Stat&StatRoll != 0 {
		v.BoundLo = 0
	}
	return true
}

// Has reports whether all of the given status bits are set
func (v *Var) Has(s Stat) bool {
	return v.Stat&s == s
}

// IsNaN reports whether the variable is currently marked invalid
func (v *Var) IsNaN() bool {
	return v.Stat&StatNaN != 0
}

// Env returns the environment the variable was initialized with
func (v *Var) Env() *Env {
	return v.env
}

// Copy snapshots src into v. The name and hooks of v are kept.
func (v *Var) Copy(src *Var) {
	name, pre, post := v.Name, v.PreUpdate, v.PostUpdate
	*v = *src
	v.Name, v.PreUpdate, v.PostUpdate = name, pre, post
}

// Scaled returns Val in the fixed-point encoding of a 16-bit register
func (v *Var) Scaled() int32 {
	return int32(math.Round(v.Val * v.Scale))
}

// ScaledLong returns Val in the fixed-point encoding of a 32-bit register pair
func (v *Var) ScaledLong() int64 {
	return int64(math.Round(v.Val * v.ScaleLong))
}

func (v *Var) convert(from, to units.Unit, value float64, scaleOnly bool) float64 {
	if v.env != nil && v.env.Units != nil {
		return v.env.Units.Convert(v.Class, from, to, value, scaleOnly, v.Aux)
	}
	return units.Convert(v.Class, from, to, value, scaleOnly, v.Aux)
}

func (v *Var) diag() *Diagnostics {
	if v.env == nil {
		return nil
	}
	return v.env.Diagnostics
}

func (v *Var) dampen() float64 {
	if v.env == nil || v.env.Dampen == nil {
		return 0
	}
	return v.env.Dampen()
}
