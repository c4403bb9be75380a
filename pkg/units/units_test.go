// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package units

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1.0, math.Abs(b))
}

// ============================================================
// UnitCoeff Tests
// ============================================================

func TestUnitCoeff_Known(t *testing.T) {
	mult, offset := UnitCoeff(ClassTemperature, DegF)
	if mult != 1.8 || offset != 32.0 {
		t.Errorf("°F coefficients: expected (1.8, 32), got (%g, %g)", mult, offset)
	}
}

func TestUnitCoeff_UnknownIsNoOp(t *testing.T) {
	mult, offset := UnitCoeff(ClassPressure, DegF)
	if mult != 1.0 || offset != 0.0 {
		t.Errorf("unknown pair should return (1, 0), got (%g, %g)", mult, offset)
	}

	got := Convert(ClassPressure, Unit(9999), KPascal, 42.0, false, 0)
	if got != 42.0 {
		t.Errorf("unknown source unit should pass through, got %g", got)
	}
}

// ============================================================
// Convert Tests
// ============================================================

func TestConvert_SameUnitFastPath(t *testing.T) {
	got := Convert(ClassFrequency, MegaHertz, MegaHertz, 580.25, false, 0)
	if got != 580.25 {
		t.Errorf("expected unchanged value, got %g", got)
	}
}

func TestConvert_Temperature(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Unit
		in, want  float64
		scaleOnly bool
	}{
		{"boiling F to C", DegF, DegC, 212.0, 100.0, false},
		{"freezing C to F", DegC, DegF, 0.0, 32.0, false},
		{"60F reference", DegF, DegC, 60.0, 15.555555555555555, false},
		{"span C to F", DegC, DegF, 10.0, 18.0, true},
		{"span F to C", DegF, DegC, 18.0, 10.0, true},
		{"kelvin passes through", DegC, Kelvin, 25.0, 25.0, false},
		{"rankine passes through", Rankine, DegF, 520.0, 520.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(ClassTemperature, tt.from, tt.to, tt.in, tt.scaleOnly, 0)
			if !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("expected %g, got %g", tt.want, got)
			}
		})
	}
}

func TestConvert_TableClasses(t *testing.T) {
	tests := []struct {
		name     string
		class    Class
		from, to Unit
		in, want float64
	}{
		{"MHz to Hz", ClassFrequency, MegaHertz, Hertz, 580.0, 580.0e6},
		{"percent to fraction", ClassPercent, Percent, Fraction, 25.0, 0.25},
		{"bar to kPa", ClassPressure, Bar, KPascal, 1.0, 100.0},
		{"m3 to bbl", ClassVolume, MCubed, Barrels, 1.0, 6.28981077},
		{"minutes to seconds", ClassTime, Minutes, Seconds, 2.0, 120.0},
		{"g/cc to kg/m3 without correlation", ClassMassPerVolume, GramsPerCC, KgPerMCubed, 0.85, 850.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.class, tt.from, tt.to, tt.in, false, 0)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("expected %g, got %g", tt.want, got)
			}
		})
	}
}

func TestConvert_RoundTripEveryPair(t *testing.T) {
	values := []float64{-1234.5, -1.0, 0.0, 0.001, 1.0, 42.42, 98765.4321}

	byClass := map[Class][]Unit{}
	for _, c := range Table {
		if c.Class == ClassMassPerVolume {
			continue
		}
		byClass[c.Class] = append(byClass[c.Class], c.Unit)
	}

	for class, list := range byClass {
		for _, u1 := range list {
			for _, u2 := range list {
				for _, x := range values {
					there := Convert(class, u1, u2, x, false, 0)
					back := Convert(class, u2, u1, there, false, 0)
					if !almostEqual(back, x, 1e-9) {
						t.Errorf("%s %s->%s->%s: %g came back as %g",
							class, Name(u1), Name(u2), Name(u1), x, back)
					}
				}
			}
		}
	}
}

func TestConverter_DensityDelegate(t *testing.T) {
	var gotFrom, gotTo Unit
	var gotTemp float64
	c := Converter{Density: func(from, to Unit, value, tempC float64) float64 {
		gotFrom, gotTo, gotTemp = from, to, tempC
		return value * 2
	}}

	got := c.Convert(ClassMassPerVolume, KgPerMCubed, DegAPI, 800.0, false, 37.5)
	if got != 1600.0 {
		t.Errorf("expected delegate result 1600, got %g", got)
	}
	if gotFrom != KgPerMCubed || gotTo != DegAPI || gotTemp != 37.5 {
		t.Errorf("delegate received (%d, %d, %g)", gotFrom, gotTo, gotTemp)
	}

	// Other classes never reach the delegate
	if v := c.Convert(ClassPercent, Percent, Fraction, 50.0, false, 0); v != 0.5 {
		t.Errorf("percent conversion should not use the density delegate, got %g", v)
	}
}

// ============================================================
// Names
// ============================================================

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
	}{
		{"°C", DegC},
		{"F", DegF},
		{"api", DegAPI},
		{"kg/m3", KgPerMCubed},
		{"MHz", MegaHertz},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if !ok || got != tt.want {
			t.Errorf("Parse(%q): expected %d, got %d (ok=%v)", tt.in, tt.want, got, ok)
		}
	}

	if _, ok := Parse("furlongs"); ok {
		t.Error("expected unknown unit to fail")
	}
}

func TestClassOf(t *testing.T) {
	if c, ok := ClassOf(DegAPI); !ok || c != ClassMassPerVolume {
		t.Errorf("°API should be mass_per_volume, got %s", c)
	}
	if c, ok := ClassOf(PSI); !ok || c != ClassPressure {
		t.Errorf("psi should be pressure, got %s", c)
	}
}
