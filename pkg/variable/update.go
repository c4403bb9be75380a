// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package variable

import (
	"math"

	"github.com/Thermoquad/razor/pkg/units"
)

// Param selects one of the four limits of a variable
type Param int

// Limit selectors
const (
	ParamBoundHi Param = iota
	ParamBoundLo
	ParamAlarmHi
	ParamAlarmLo
)

// Update writes a new value. isUserUnit means value is in the display unit
// and must be converted to the calculation unit first.
//
// Returns false when the value was outside the bounds and got clamped, or
// when value is NaN (the variable is then marked invalid).
func (v *Var) Update(value float64, isUserUnit bool) bool {
	if v.PreUpdate != nil {
		v.PreUpdate(v)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.NaN()
		return false
	}

	wasNaN := v.IsNaN()
	old := v.Val

	v.BaseVal = value
	t := value
	if isUserUnit {
		t = v.convert(v.Unit, v.CalcUnit, t, false)
	}

	t, ok := v.CheckSetBounds(t)

	src := v.CalcVal
	if v.Stat&StatDampen != 0 {
		if d := v.dampen(); d > 0 {
			// d is REG_AO_DAMPEN; the factor 10 folds in the 0.5 s update period
			a := 1.0 - math.Exp(-1.0/(10.0*d))
			if !v.primed || wasNaN {
				v.damped = v.CalcVal
			} else {
				v.damped = a*v.CalcVal + (1.0-a)*v.damped
			}
			src = v.damped
		} else {
			v.damped = v.CalcVal
		}
	} else {
		v.damped = v.CalcVal
	}
	v.primed = true

	v.Val = v.convert(v.CalcUnit, v.Unit, src, false)
	if v.Stat&StatRound != 0 {
		v.Val = math.Round(v.Val)
	}

	if v.PostUpdate != nil && math.Abs(v.Val-old) > Tolerance {
		v.PostUpdate(v)
	}

	return ok
}

// CheckSetBounds evaluates alarms and enforces bounds on t, which is in the
// calculation unit. It writes CalcVal and clears the NaN flag.
//
// Alarms are advisory: they set exactly one of hi, lo or neither and leave
// t alone. Bounds clamp t to the violated limit, flag it, set the global
// variable-bound diagnostic and return false. A value equal to a limit is in
// range; when it is the limit the last call clamped to, the bound flag and
// diagnostic are left alone so a second pass changes nothing. Rolling
// variables wrap into [0, BoundHi) instead of clamping.
func (v *Var) CheckSetBounds(t float64) (float64, bool) {
	ok := true
	diag := v.diag()

	if v.Stat&StatNoAlarm == 0 {
		switch {
		case compare(t, v.AlarmHi) > 0:
			v.Stat |= StatAlarmHi
			v.Stat &^= StatAlarmLo
		case compare(t, v.AlarmLo) < 0:
			v.Stat |= StatAlarmLo
			v.Stat &^= StatAlarmHi
		default:
			v.Stat &^= StatAlarmHi | StatAlarmLo
		}
	}

	if v.Stat&StatRoll != 0 {
		v.Stat &^= StatBoundHi | StatBoundLo
		if v.BoundHi != 0 {
			t = math.Mod(t, v.BoundHi)
		}
		if t < 0 {
			t = 0
		}
	} else if v.Stat&StatNoBound == 0 {
		switch {
		case t > v.BoundHi:
			t = v.BoundHi
			v.Stat |= StatBoundHi
			v.Stat &^= StatBoundLo
			if diag != nil {
				diag.Set(DiagVarHigh)
			}
			ok = false
		case t < v.BoundLo:
			t = v.BoundLo
			v.Stat |= StatBoundLo
			v.Stat &^= StatBoundHi
			if diag != nil {
				diag.Set(DiagVarLow)
			}
			ok = false
		// on the limit it was clamped to: in range, flags left as they are
		case t == v.BoundHi && v.Stat&StatBoundHi != 0,
			t == v.BoundLo && v.Stat&StatBoundLo != 0:
		default:
			v.Stat &^= StatBoundHi | StatBoundLo
			if diag != nil {
				diag.Clear(DiagVarHigh | DiagVarLow)
			}
		}
	}

	v.CalcVal = t
	v.Stat &^= StatNaN
	return t, ok
}

// NaN marks the variable as not currently valid.
//
// NaN-immune variables never report NaN: the flag is forced off and the
// values are kept. All four bound and alarm flags are set either way.
func (v *Var) NaN() {
	immune := v.Stat&StatNaNImmune != 0
	if immune {
		v.Stat &^= StatNaN
	} else {
		v.Stat |= StatNaN
	}

	v.Stat |= StatBoundHi | StatBoundLo | StatAlarmHi | StatAlarmLo

	if !immune {
		v.Val = 0
		v.CalcVal = 0
		v.BaseVal = 0
	}
}

// SetUnitParam writes one of the four limits. With isUserUnit the value is
// converted from the display unit to the calculation unit first.
func (v *Var) SetUnitParam(p Param, value float64, isUserUnit bool) {
	if isUserUnit {
		value = v.convert(v.Unit, v.CalcUnit, value, false)
	}

	switch p {
	case ParamBoundHi:
		v.BoundHi = value
	case ParamBoundLo:
		v.BoundLo = value
	case ParamAlarmHi:
		v.AlarmHi = value
	case ParamAlarmLo:
		v.AlarmLo = value
	}

	if v.Stat&StatRoll != 0 {
		v.BoundLo = 0
	}
}

// UnitParam returns one of the four limits, in the display unit when
// isUserUnit is set
func (v *Var) UnitParam(p Param, isUserUnit bool) float64 {
	var value float64
	switch p {
	case ParamBoundHi:
		value = v.BoundHi
	case ParamBoundLo:
		value = v.BoundLo
	case ParamAlarmHi:
		value = v.AlarmHi
	case ParamAlarmLo:
		value = v.AlarmLo
	}
	if isUserUnit {
		value = v.convert(v.CalcUnit, v.Unit, value, false)
	}
	return value
}

// SetUnit changes the display unit and re-derives Val. Units of another
// class are refused.
func (v *Var) SetUnit(u units.Unit) bool {
	if u != v.CalcUnit {
		class, ok := units.ClassOf(u)
		if !ok || class != v.Class {
			return false
		}
	}
	v.Unit = u
	v.Val = v.convert(v.CalcUnit, v.Unit, v.damped, false)
	if v.Stat&StatRound != 0 {
		v.Val = math.Round(v.Val)
	}
	return true
}

// compare returns 1 when a is above b by more than Tolerance, -1 when below
// by more than Tolerance and 0 otherwise
func compare(a, b float64) int {
	switch {
	case a-b > Tolerance:
		return 1
	case b-a > Tolerance:
		return -1
	}
	return 0
}
