// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import "fmt"

// Base is the reference temperature of a density
type Base uint8

// Reference temperatures
const (
	Base60F Base = iota
	Base15C
)

func (b Base) String() string {
	if b == Base15C {
		return "15C"
	}
	return "60F"
}

// ParseBase accepts "60F" or "15C"
func ParseBase(s string) (Base, error) {
	switch s {
	case "60F", "60f", "60":
		return Base60F, nil
	case "15C", "15c", "15":
		return Base15C, nil
	}
	return 0, fmt.Errorf("api: unknown reference temperature %q", s)
}

// Table selects a commodity family
type Table byte

// Commodity families
const (
	TableA Table = 'A' // crude oil
	TableB Table = 'B' // generalized products
	TableC Table = 'C' // special applications, configured alpha
	TableD Table = 'D' // lubricating oils
)

// ParseTable accepts A, B, C or D
func ParseTable(s string) (Table, error) {
	if len(s) == 1 {
		switch t := Table(s[0] &^ 0x20); t {
		case TableA, TableB, TableC, TableD:
			return t, nil
		}
	}
	return 0, fmt.Errorf("api: unknown table %q", s)
}

// Status classifies a solve
type Status uint8

// Solve status
const (
	StatusValid Status = iota
	StatusExtrapolate
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExtrapolate:
		return "extrapolate"
	}
	return "fail"
}

func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// SubRange indexes the constant set of a family. Only table B has more
// than one.
type SubRange int8

// Table B sub-ranges, heaviest first
const (
	SubRangeAuto       SubRange = -1
	SubRangeFuelOil    SubRange = 0
	SubRangeJet        SubRange = 1
	SubRangeTransition SubRange = 2
	SubRangeGasoline   SubRange = 3
)

// constants of alpha = k0/ρ² + k1/ρ + k2 over a reference density window
type constants struct {
	k0, k1, k2 float64
	lo, hi     float64
}

type window struct {
	lo, hi float64
}

// contains reports whether x is inside w widened by band on each side
func (w window) contains(x, band float64) bool {
	return x >= w.lo-band && x <= w.hi+band
}

type family struct {
	sets    []constants
	density window
}

type baseTables struct {
	ref      float64 // reference temperature in the native unit
	families map[Table]family
	temp     window

	// extrapolation bands beyond the validated windows
	densityBand float64
	tempBand    float64
}

// API 11.1 (1980) constants, kg/m³ and °F
var tables60F = baseTables{
	ref: 60.0,
	families: map[Table]family{
		TableA: {
			sets:    []constants{{k0: 341.0957, lo: 610.6, hi: 1075.0}},
			density: window{610.6, 1075.0},
		},
		TableB: {
			sets: []constants{
				{k0: 103.8720, k1: 0.2701, lo: 838.3127, hi: 1163.5},
				{k0: 330.3010, lo: 787.5195, hi: 838.3127},
				{k0: 1489.0670, k2: -0.00186840, lo: 770.3520, hi: 787.5195},
				{k0: 192.4571, k1: 0.2438, lo: 610.6, hi: 770.3520},
			},
			density: window{610.6, 1163.5},
		},
		TableC: {density: window{610.6, 1163.5}},
		TableD: {
			sets:    []constants{{k1: 0.34878, lo: 800.9, hi: 1163.5}},
			density: window{800.9, 1163.5},
		},
	},
	temp:        window{-50.0, 250.0},
	densityBand: 50.0,
	tempBand:    50.0,
}

// API 11.1 (1980) metric constants, kg/m³ and °C
var tables15C = baseTables{
	ref: 15.0,
	families: map[Table]family{
		TableA: {
			sets:    []constants{{k0: 613.9723, lo: 610.5, hi: 1075.0}},
			density: window{610.5, 1075.0},
		},
		TableB: {
			sets: []constants{
				{k0: 186.9696, k1: 0.4862, lo: 839.0, hi: 1075.0},
				{k0: 594.5418, lo: 788.0, hi: 839.0},
				{k0: 2680.3206, k2: -0.00336312, lo: 770.5, hi: 787.5},
				{k0: 346.4228, k1: 0.4388, lo: 653.0, hi: 770.0},
			},
			density: window{653.0, 1075.0},
		},
		TableC: {density: window{610.5, 1164.0}},
		TableD: {
			sets:    []constants{{k1: 0.6278, lo: 825.0, hi: 1164.0}},
			density: window{825.0, 1164.0},
		},
	},
	temp:        window{-46.0, 121.0},
	densityBand: 50.0,
	tempBand:    28.0,
}

func tablesFor(b Base) *baseTables {
	if b == Base15C {
		return &tables15C
	}
	return &tables60F
}

// subRangeOf classifies a reference density into a table B sub-range.
//
// The comparison is done on API gravity so it matches how operators quote
// product ranges; metric gaps between sub-ranges go to the lighter set.
func subRangeOf(b Base, rho float64) SubRange {
	api := KgM3ToAPI(rho)
	if api == ErrorValue {
		return SubRangeFuelOil
	}
	sets := tablesFor(b).families[TableB].sets
	for i := 0; i < len(sets)-1; i++ {
		if api <= KgM3ToAPI(sets[i].lo) {
			return SubRange(i)
		}
	}
	return SubRange(len(sets) - 1)
}
